package classifier

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

type Config struct {
	CameraName string   `yaml:"camera_name" validate:"required"`
	Threshold  *float64 `yaml:"threshold" validate:"omitempty,gte=0"`
	Width      int      `yaml:"width" validate:"gte=0"`
	Height     int      `yaml:"height" validate:"gte=0"`

	Camera  ConfigCamera  `yaml:"camera"`
	Watch   ConfigWatch   `yaml:"watch"`
	Storage ConfigStorage `yaml:"storage"`
	Upload  ConfigUpload  `yaml:"upload"`
	Notify  ConfigNotify  `yaml:"notify"`
	Log     ConfigLog     `yaml:"log"`
}

type ConfigCamera struct {
	Dir string `yaml:"dir"`
}

type ConfigWatch struct {
	Interval time.Duration `yaml:"interval" validate:"gte=0"`
}

type ConfigStorage struct {
	Database string `yaml:"database"`
}

type ConfigUpload struct {
	Endpoint  string `yaml:"endpoint" validate:"required_with=Bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket" validate:"required_with=Endpoint"`
	Region    string `yaml:"region"`
	Prefix    string `yaml:"prefix"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type ConfigNotify struct {
	URL     string `yaml:"url" validate:"omitempty,url"`
	Subject string `yaml:"subject"`
}

type ConfigLog struct {
	Level      string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format     string `yaml:"format" validate:"omitempty,oneof=text json"`
	Output     string `yaml:"output" validate:"omitempty,oneof=stdout file both"`
	FilePath   string `yaml:"file_path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
}

// ThresholdOrDefault returns the configured threshold or DefaultThreshold.
func (c *Config) ThresholdOrDefault() float64 {
	if c.Threshold == nil {
		return DefaultThreshold
	}
	return *c.Threshold
}

// ReferenceSize returns the size of the blank reference, falling back to
// DefaultWidth x DefaultHeight.
func (c *Config) ReferenceSize() (width, height int) {
	width, height = c.Width, c.Height
	if width == 0 {
		width = DefaultWidth
	}
	if height == 0 {
		height = DefaultHeight
	}
	return width, height
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every field and reports all violations at once. The
// returned error wraps ErrConfiguration, and ErrMissingCamera or
// ErrInvalidThreshold where they apply.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	var result *multierror.Error
	for _, fe := range fieldErrors {
		switch fe.StructNamespace() {
		case "Config.CameraName":
			result = multierror.Append(result, ErrMissingCamera)
		case "Config.Threshold":
			result = multierror.Append(result, fmt.Errorf("%w, got %v", ErrInvalidThreshold, fe.Value()))
		default:
			result = multierror.Append(result, fmt.Errorf("%w: %s failed on '%s %s'", ErrConfiguration, fe.Namespace(), fe.Tag(), fe.Param()))
		}
	}
	return result.ErrorOrNil()
}

func (c *Config) applyDefaults() {
	if c.Upload.Prefix == "" {
		c.Upload.Prefix = "frames"
	}
	if c.Notify.Subject == "" {
		c.Notify.Subject = "dupclassifier.changes"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}
	if c.Log.FilePath == "" {
		c.Log.FilePath = "logs/dupclassifier.log"
	}
}

// ParseConfig parses YAML, expanding ${VAR} references from the environment
// first, then applies defaults and validates.
func ParseConfig(data []byte) (*Config, error) {
	var ret Config
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &ret); err != nil {
		return nil, fmt.Errorf("%w: while parsing yaml: %v", ErrConfiguration, err)
	}
	ret.applyDefaults()
	if err := ret.Validate(); err != nil {
		return nil, err
	}
	return &ret, nil
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return ParseConfig(data)
}

// ConfigFromAttributes builds a Config from a host supplied attribute map,
// such as the attributes of a component config.
func ConfigFromAttributes(attributes map[string]any) (*Config, error) {
	data, err := yaml.Marshal(attributes)
	if err != nil {
		return nil, fmt.Errorf("%w: while encoding attributes: %v", ErrConfiguration, err)
	}
	return ParseConfig(data)
}
