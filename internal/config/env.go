package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment variable names read by the job.
const (
	EnvTwitterAPIKey       = "TWITTER_API_KEY"
	EnvTwitterAPISecret    = "TWITTER_API_SECRET"
	EnvTwitterAccessToken  = "TWITTER_ACCESS_TOKEN"
	EnvTwitterAccessSecret = "TWITTER_ACCESS_SECRET"
	EnvChatGPTEmail        = "CHATGPT_EMAIL"
	EnvChatGPTPassword     = "CHATGPT_PASSWORD"
	EnvOpenAIAPIKey        = "OPENAI_API_KEY"
	EnvTopics              = "TOPICS"
	EnvTweetTopics         = "TWEET_TOPICS"
	EnvTweetStyles         = "TWEET_STYLES"
	EnvScheduleTimes       = "SCHEDULE_TIMES"
	EnvRunDuration         = "RUN_DURATION"
	EnvRunDurationHours    = "RUN_DURATION_HOURS"
	EnvPostImmediately     = "POST_IMMEDIATELY"
	EnvLogFile             = "LOG_FILE"
	EnvGitHubActions       = "GITHUB_ACTIONS"
	EnvWebDriverPath       = "WEBDRIVER_PATH"
)

// DefaultLogFile is used when LOG_FILE is a plain on switch.
const DefaultLogFile = "twitter_bot.log"

// passThrough lists the variables handed to the bot command unchanged.
var passThrough = []string{
	EnvTwitterAPIKey, EnvTwitterAPISecret, EnvTwitterAccessToken, EnvTwitterAccessSecret,
	EnvChatGPTEmail, EnvChatGPTPassword, EnvOpenAIAPIKey,
	EnvTopics, EnvTweetTopics, EnvTweetStyles, EnvScheduleTimes,
	EnvRunDuration, EnvRunDurationHours, EnvPostImmediately,
}

// BotEnv is the job environment after parsing.
type BotEnv struct {
	TwitterAPIKey       string
	TwitterAPISecret    string
	TwitterAccessToken  string
	TwitterAccessSecret string
	ChatGPTEmail        string
	ChatGPTPassword     string
	OpenAIAPIKey        string

	Topics          []string
	Styles          []json.RawMessage
	ScheduleTimes   []string
	RunDuration     time.Duration
	PostImmediately bool
	// LogFile is empty when file logging is off.
	LogFile string
	CI      bool

	raw map[string]string
}

// LoadEnvFile loads a dotenv file into the process environment without
// overriding variables that are already set. A missing optional file is
// not an error.
func LoadEnvFile(path string, required bool) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if !required && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("env file %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	return nil
}

// ReadEnvFile parses a dotenv file without touching the process environment.
func ReadEnvFile(path string) (map[string]string, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("reading env file %s: %w", path, err)
	}
	return values, nil
}

// ReadBotEnv parses the job variables using lookup, normally os.LookupEnv.
func ReadBotEnv(lookup func(string) (string, bool)) (*BotEnv, error) {
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	env := &BotEnv{
		TwitterAPIKey:       get(EnvTwitterAPIKey),
		TwitterAPISecret:    get(EnvTwitterAPISecret),
		TwitterAccessToken:  get(EnvTwitterAccessToken),
		TwitterAccessSecret: get(EnvTwitterAccessSecret),
		ChatGPTEmail:        get(EnvChatGPTEmail),
		ChatGPTPassword:     get(EnvChatGPTPassword),
		OpenAIAPIKey:        get(EnvOpenAIAPIKey),
		raw:                 map[string]string{},
	}
	for _, key := range passThrough {
		if v, ok := lookup(key); ok {
			env.raw[key] = v
		}
	}

	var err error
	// the bot reads TOPICS; TWEET_TOPICS is the older name
	if env.Topics, err = parseStringList(EnvTopics, get(EnvTopics)); err != nil {
		return nil, err
	}
	tweetTopics, err := parseStringList(EnvTweetTopics, get(EnvTweetTopics))
	if err != nil {
		return nil, err
	}
	if len(env.Topics) == 0 {
		env.Topics = tweetTopics
	}
	if v := get(EnvTweetStyles); v != "" {
		if err := json.Unmarshal([]byte(v), &env.Styles); err != nil {
			return nil, fmt.Errorf("%s must be a JSON list: %w", EnvTweetStyles, err)
		}
	}
	if env.ScheduleTimes, err = parseStringList(EnvScheduleTimes, get(EnvScheduleTimes)); err != nil {
		return nil, err
	}

	if env.RunDuration, err = ParseRunDuration(get(EnvRunDuration)); err != nil {
		return nil, err
	}
	if env.RunDuration == 0 {
		if h := get(EnvRunDurationHours); h != "" {
			hours, err := strconv.ParseFloat(h, 64)
			if err != nil || hours < 0 {
				return nil, fmt.Errorf("invalid %s %q", EnvRunDurationHours, h)
			}
			env.RunDuration = time.Duration(hours * float64(time.Hour))
		}
	}

	if env.PostImmediately, err = parseBool(EnvPostImmediately, get(EnvPostImmediately)); err != nil {
		return nil, err
	}
	env.CI = strings.EqualFold(get(EnvGitHubActions), "true")
	env.LogFile = logFileFrom(get(EnvLogFile))

	return env, nil
}

// ParseRunDuration accepts a Go duration ("5h", "90m") or a bare number of
// minutes. Empty means unbounded.
func ParseRunDuration(v string) (time.Duration, error) {
	if v == "" {
		return 0, nil
	}
	if minutes, err := strconv.ParseFloat(v, 64); err == nil {
		if minutes < 0 {
			return 0, fmt.Errorf("invalid %s %q: negative", EnvRunDuration, v)
		}
		return time.Duration(minutes * float64(time.Minute)), nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s %q", EnvRunDuration, v)
	}
	return d, nil
}

func parseStringList(name, v string) ([]string, error) {
	if v == "" {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal([]byte(v), &list); err != nil {
		return nil, fmt.Errorf("%s must be a JSON list of strings: %w", name, err)
	}
	return list, nil
}

func parseBool(name, v string) (bool, error) {
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(strings.ToLower(v))
	if err != nil {
		return false, fmt.Errorf("invalid %s %q", name, v)
	}
	return b, nil
}

// logFileFrom turns the LOG_FILE value into a path. On-switches select the
// default file name, off-switches disable file logging.
func logFileFrom(v string) string {
	switch strings.ToLower(v) {
	case "", "0", "false", "no", "off":
		return ""
	case "1", "true", "yes", "on":
		return DefaultLogFile
	default:
		return v
	}
}

// MissingCredentials lists the unset variables the given bot mode needs.
func (e *BotEnv) MissingCredentials(mode string) []string {
	required := map[string]string{EnvOpenAIAPIKey: e.OpenAIAPIKey}
	switch mode {
	case BotModeAPI:
		required[EnvTwitterAPIKey] = e.TwitterAPIKey
		required[EnvTwitterAPISecret] = e.TwitterAPISecret
		required[EnvTwitterAccessToken] = e.TwitterAccessToken
		required[EnvTwitterAccessSecret] = e.TwitterAccessSecret
	case BotModeBrowser:
		required[EnvChatGPTEmail] = e.ChatGPTEmail
		required[EnvChatGPTPassword] = e.ChatGPTPassword
	}

	var missing []string
	for name, v := range required {
		if v == "" {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

// Environ returns the variables passed to the bot command. logPath and
// driverPath are absolute or empty.
func (e *BotEnv) Environ(logPath, driverPath string) []string {
	keys := make([]string, 0, len(e.raw))
	for k := range e.raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys)+3)
	for _, k := range keys {
		out = append(out, k+"="+e.raw[k])
	}
	if logPath != "" {
		out = append(out, EnvLogFile+"="+logPath)
	}
	if e.CI {
		out = append(out, EnvGitHubActions+"=true")
	}
	if driverPath != "" {
		out = append(out, EnvWebDriverPath+"="+driverPath)
	}
	return out
}

// ApplyEnv overrides file settings with the environment.
func (c *GlobalConfig) ApplyEnv(env *BotEnv) {
	if len(env.ScheduleTimes) > 0 {
		c.Schedule.Times = env.ScheduleTimes
		c.Schedule.Cron = ""
	}
	if env.LogFile != "" {
		if filepath.IsAbs(env.LogFile) {
			c.Logging.File = env.LogFile
		} else {
			c.Logging.File = filepath.Join(c.WorkDir, env.LogFile)
		}
	}
}
