package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// DefaultSystemPrompt instructs the model to collect the trip through tool calls and
// to answer with the terminal sentinel only once everything is done.
const DefaultSystemPrompt = `You are an agent that helps a user book a trip on AirBnB. The user will provide you with details about
their trip. You will use this information to navigate the AirBnB website and book the trip for them.
You navigate the website by calling functions that interact with the website. If you are given dates
without a specific year, assume the closest date in the future. All dates MUST be formatted as MM/DD/YYYY.

When you are completely finished with the user's request you MUST reply with DONE, but you MUST not reply with
it before this.`

// DefaultRequest is the sample trip offered by the console when no request is given.
const DefaultRequest = "Please book me an Airbnb. I am going to Seoul, South Korea between Mar 25 and Mar 29. " +
	"I am traveling with my wife. We want to rent an entire home and our budget is $100-150 per night. " +
	"We prefer to stay at highly rated houses that have an instant booking option."

type Config struct {
	AppConfig     *AppConfig
	AIConfig      *AIConfig
	BrowserConfig *BrowserConfig
	AgentConfig   *AgentConfig
	SiteConfig    *SiteConfig
	TimingConfig  *TimingConfig
}

type AppConfig struct {
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	Debug          bool   `envconfig:"DEBUG" default:"false"`
	TracingEnabled bool   `envconfig:"TRACING_ENABLED" default:"false"`
}

type AIConfig struct {
	APIKey  string `envconfig:"AI_API_KEY" required:"true"`
	Model   string `envconfig:"AI_MODEL" default:"gpt-4-0125-preview"`
	BaseURL string `envconfig:"AI_BASE_URL"`
}

type BrowserConfig struct {
	Headless       bool   `envconfig:"BROWSER_HEADLESS" default:"false"`
	SlowMo         int    `envconfig:"BROWSER_SLOW_MO" default:"0"`
	Timeout        int    `envconfig:"BROWSER_TIMEOUT" default:"30000"`
	UserDataDir    string `envconfig:"BROWSER_USER_DATA_DIR" default:"./browser-data"`
	UserAgent      string `envconfig:"BROWSER_USER_AGENT" default:"Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.3.1 Mobile/15E148 Safari/604.1"`
	SkipInstall    bool   `envconfig:"BROWSER_SKIP_INSTALL" default:"false"`
	ViewportWidth  int    `envconfig:"BROWSER_VIEWPORT_WIDTH" default:"390"`
	ViewportHeight int    `envconfig:"BROWSER_VIEWPORT_HEIGHT" default:"844"`
	Mobile         bool   `envconfig:"BROWSER_MOBILE" default:"true"`
	Locale         string `envconfig:"BROWSER_LOCALE" default:"en-US"`
}

type AgentConfig struct {
	SystemPrompt     string        `envconfig:"AGENT_SYSTEM_PROMPT"`
	TerminalSentinel string        `envconfig:"AGENT_TERMINAL_SENTINEL" default:"DONE"`
	StepInterval     time.Duration `envconfig:"AGENT_STEP_INTERVAL" default:"2s"`
	// MaxSteps bounds runStep calls per session; 0 disables the bound.
	MaxSteps        int  `envconfig:"AGENT_MAX_STEPS" default:"30"`
	AckUnknownTools bool `envconfig:"AGENT_ACK_UNKNOWN_TOOLS" default:"false"`
}

type SiteConfig struct {
	LoginURL  string `envconfig:"SITE_LOGIN_URL" default:"https://www.airbnb.com/login"`
	HomeURL   string `envconfig:"SITE_HOME_URL" default:"https://www.airbnb.com/"`
	SkipLogin bool   `envconfig:"SITE_SKIP_LOGIN" default:"false"`
}

// TimingConfig holds every bounded wait used by the page sequences.
type TimingConfig struct {
	ElementTimeout  time.Duration `envconfig:"TIMING_ELEMENT_TIMEOUT" default:"30s"`
	LoginTimeout    time.Duration `envconfig:"TIMING_LOGIN_TIMEOUT" default:"180s"`
	ResponseTimeout time.Duration `envconfig:"TIMING_RESPONSE_TIMEOUT" default:"30s"`
	OptionalWindow  time.Duration `envconfig:"TIMING_OPTIONAL_WINDOW" default:"3s"`
	StepperSettle   time.Duration `envconfig:"TIMING_STEPPER_SETTLE" default:"500ms"`
	KeystrokeDelay  time.Duration `envconfig:"TIMING_KEYSTROKE_DELAY" default:"100ms"`
}

func GetConfig() (*Config, error) {
	_ = godotenv.Load()

	var conf Config

	if err := envconfig.Process("", &conf); err != nil {
		return nil, fmt.Errorf("read config from env vars: %w", err)
	}

	if conf.AgentConfig.SystemPrompt == "" {
		conf.AgentConfig.SystemPrompt = DefaultSystemPrompt
	}

	if conf.AgentConfig.TerminalSentinel == "" {
		return nil, fmt.Errorf("read config from env vars: AGENT_TERMINAL_SENTINEL must not be empty")
	}

	if conf.AgentConfig.MaxSteps < 0 {
		return nil, fmt.Errorf("read config from env vars: AGENT_MAX_STEPS must not be negative")
	}

	return &conf, nil
}
