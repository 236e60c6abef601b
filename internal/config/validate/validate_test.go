package validate

import "testing"

func TestValidateManifestJSON(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{
			name: "versions and channels",
			data: `{
				"timestamp": "2023-08-01T00:00:00.000Z",
				"versions": [
					{"version": "115.0.5790.170", "revision": "1148114",
					 "downloads": {"chromedriver": [{"platform": "linux64", "url": "https://x/115"}]}}
				],
				"channels": {
					"Stable": {"channel": "Stable", "version": "116.0.5845.96",
					 "downloads": {"chromedriver": [{"platform": "linux64", "url": "https://x/stable"}]}}
				}
			}`,
		},
		{
			name: "null url is allowed",
			data: `{"versions": [{"version": "114.0.1", "downloads": {"chromedriver": [{"platform": "linux64", "url": null}]}}]}`,
		},
		{name: "empty object", data: `{}`},
		{name: "not json", data: `<html>`, wantErr: true},
		{name: "array root", data: `[]`, wantErr: true},
		{name: "versions not array", data: `{"versions": {}}`, wantErr: true},
		{name: "bad version string", data: `{"versions": [{"version": "latest"}]}`, wantErr: true},
		{name: "missing platform", data: `{"versions": [{"version": "1.2", "downloads": {"chromedriver": [{"url": "u"}]}}]}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateManifestJSON([]byte(tt.data))
			if tt.wantErr && err == nil {
				t.Fatal("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestValidateConfigJSON(t *testing.T) {
	valid := `{
		"logging": {"level": "debug", "file": "twitter_bot.log"},
		"driver": {"name": "chromedriver", "allowFallback": true},
		"bot": {"mode": "browser", "command": "python twitter_bot.py"},
		"schedule": {"times": ["07:00", "13:00", "19:00"]},
		"artifactRetain": 30
	}`
	if err := ValidateConfigJSON([]byte(valid)); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	invalid := []string{
		`{"logging": {"level": "chatty"}}`,
		`{"bot": {"mode": "carrier-pigeon"}}`,
		`{"schedule": {"times": ["8am"]}}`,
		`{"unknownTopLevel": true}`,
		`{"artifactRetain": -1}`,
		`{"artifactRetain": 2.5}`,
	}
	for _, doc := range invalid {
		if err := ValidateConfigJSON([]byte(doc)); err == nil {
			t.Errorf("expected error for %s", doc)
		}
	}
}

func TestValidateAgainstSchemaDecodesNumbers(t *testing.T) {
	schema := []byte(`{"$schema": "https://json-schema.org/draft/2020-12/schema",
		"type": "object", "properties": {"n": {"type": "integer", "maximum": 9007199254740993}}}`)

	if err := ValidateAgainstSchema("numbers.schema.json", schema, []byte(`{"n": 9007199254740993}`), ""); err != nil {
		t.Fatalf("large integer rejected: %v", err)
	}
	if err := ValidateAgainstSchema("numbers.schema.json", schema, []byte(`{"n": 1.5}`), ""); err == nil {
		t.Fatal("expected error for non-integer")
	}
	if err := ValidateAgainstSchema("numbers.schema.json", schema, []byte(`{"n": `), ""); err == nil {
		t.Fatal("expected error for truncated JSON")
	}
}
