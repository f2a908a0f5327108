package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/xuri/excelize/v2"
)

// Config holds the uhppoted-app-report settings, populated from environment variables
// (optionally loaded from a .env file).
type Config struct {
	Workdir  string `envconfig:"WORKDIR"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`
	Image    string `envconfig:"IMAGE_FILE"`
	History  string `envconfig:"HISTORY_DB"`
	Lockfile string `envconfig:"LOCKFILE"`

	SheetFormat      string `envconfig:"SHEET_FORMAT" default:"200601"`
	DateFormat       string `envconfig:"DATE_FORMAT" default:"January 2, 2006"`
	AttachmentFormat string `envconfig:"ATTACHMENT_FORMAT" default:"2006-01-02"`
	Timezone         string `envconfig:"TIMEZONE" default:"Local"`

	Google GoogleConfig `envconfig:"GOOGLE"`
	Drive  DriveConfig  `envconfig:"DRIVE"`
	Scan   ScanConfig   `envconfig:"SCAN"`
	Area   AreaConfig   `envconfig:"AREA"`
	Render RenderConfig `envconfig:"RENDER"`
	Mail   MailConfig   `envconfig:"MAIL"`
	SMTP   SMTPConfig   `envconfig:"SMTP"`
	Retry  RetryConfig  `envconfig:"RETRY"`
}

type GoogleConfig struct {
	Credentials string `envconfig:"GOOGLE_CREDENTIALS"`
	Tokens      string `envconfig:"GOOGLE_TOKENS"`
	Interactive bool   `envconfig:"GOOGLE_INTERACTIVE" default:"true"`
}

type DriveConfig struct {
	ID   string `envconfig:"DRIVE_ID"`
	Path string `envconfig:"DRIVE_PATH"`
}

type ScanConfig struct {
	Column   string `envconfig:"SCAN_COLUMN" default:"D"`
	FirstRow int    `envconfig:"SCAN_FIRST_ROW" default:"2"`
	Step     int    `envconfig:"SCAN_STEP" default:"10"`
	MaxRow   int    `envconfig:"SCAN_MAX_ROW" default:"1000"`
}

type AreaConfig struct {
	FirstColumn string `envconfig:"AREA_FIRST_COLUMN" default:"A"`
	LastColumn  string `envconfig:"AREA_LAST_COLUMN" default:"D"`
	Offset      int    `envconfig:"AREA_OFFSET" default:"-1"`
	Rows        int    `envconfig:"AREA_ROWS" default:"10"`
}

type RenderConfig struct {
	DPI       float64 `envconfig:"RENDER_DPI" default:"96"`
	Gridlines bool    `envconfig:"RENDER_GRIDLINES" default:"false"`
}

type MailConfig struct {
	From      string   `envconfig:"MAIL_FROM"`
	To        []string `envconfig:"MAIL_TO"`
	Cc        []string `envconfig:"MAIL_CC"`
	Subject   string   `envconfig:"MAIL_SUBJECT" default:"Report - {{.Date}}"`
	Signature string   `envconfig:"MAIL_SIGNATURE" default:"Report"`
	Link      string   `envconfig:"MAIL_LINK"`
	Transport string   `envconfig:"MAIL_TRANSPORT" default:"gmail"`
}

type SMTPConfig struct {
	Address  string `envconfig:"SMTP_ADDRESS"`
	Username string `envconfig:"SMTP_USERNAME"`
	Password string `envconfig:"SMTP_PASSWORD"`
	Security string `envconfig:"SMTP_SECURITY" default:"starttls"`
}

type RetryConfig struct {
	Attempts      int           `envconfig:"RETRY_ATTEMPTS" default:"5"`
	Wait          time.Duration `envconfig:"RETRY_WAIT" default:"60s"`
	OnSendFailure bool          `envconfig:"RETRY_ON_SEND_FAILURE" default:"true"`
}

const (
	TransportGmail = "gmail"
	TransportSMTP  = "smtp"

	// Disabled turns off the optional history database and lock file.
	Disabled = "off"
)

// Load reads the optional .env file and decodes the environment into a Config. A missing
// default .env file is not an error, a missing explicitly specified file is.
func Load(envfile string) (*Config, error) {
	if envfile != "" {
		if err := godotenv.Load(envfile); err != nil {
			return nil, fmt.Errorf("error loading %v (%w)", envfile, err)
		}
	} else {
		_ = godotenv.Load()
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	cfg.resolve()

	return &cfg, nil
}

// resolve fills in the file paths that default to locations in the working directory.
// The credentials default to the system etc directory unless WORKDIR is set.
func (c *Config) resolve() {
	credentials := filepath.Join(c.Workdir, ".google", "credentials.json")

	if strings.TrimSpace(c.Workdir) == "" {
		c.Workdir = DEFAULT_WORKDIR
		credentials = DEFAULT_CREDENTIALS
	}

	if c.Google.Credentials == "" {
		c.Google.Credentials = credentials
	}

	if c.Google.Tokens == "" {
		dir, file := filepath.Split(c.Google.Credentials)
		name := strings.TrimSuffix(file, filepath.Ext(file))
		c.Google.Tokens = filepath.Join(dir, fmt.Sprintf("%s.tokens", name))
	}

	if c.Image == "" {
		c.Image = filepath.Join(c.Workdir, "report.png")
	}

	if c.History == "" {
		c.History = filepath.Join(c.Workdir, "uhppoted-app-report.db")
	} else if strings.EqualFold(c.History, Disabled) {
		c.History = ""
	}

	if c.Lockfile == "" {
		c.Lockfile = filepath.Join(c.Workdir, "uhppoted-app-report.lock")
	} else if strings.EqualFold(c.Lockfile, Disabled) {
		c.Lockfile = ""
	}

	c.Mail.Transport = strings.ToLower(strings.TrimSpace(c.Mail.Transport))
	c.SMTP.Security = strings.ToLower(strings.TrimSpace(c.SMTP.Security))
}

// Validate checks the settings required by the report pipeline and returns all the
// problems found, joined into a single error.
func (c *Config) Validate() error {
	var errs []error

	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if strings.TrimSpace(c.Google.Credentials) == "" {
		invalid("missing Google credentials file")
	}

	if strings.TrimSpace(c.Drive.ID) == "" {
		invalid("DRIVE_ID is required")
	}

	if strings.Trim(c.Drive.Path, "/ ") == "" {
		invalid("DRIVE_PATH is required")
	}

	if strings.TrimSpace(c.Mail.From) == "" {
		invalid("MAIL_FROM is required")
	} else if _, err := mail.ParseAddress(c.Mail.From); err != nil {
		invalid("invalid MAIL_FROM address '%v' (%v)", c.Mail.From, err)
	}

	recipients := 0
	for _, address := range c.Mail.To {
		if strings.TrimSpace(address) != "" {
			recipients++
		}
	}

	if recipients == 0 {
		invalid("MAIL_TO is required")
	}

	// blank entries (e.g. from a trailing comma) are ignored when composing the message
	for _, list := range [][]string{c.Mail.To, c.Mail.Cc} {
		for _, address := range list {
			if strings.TrimSpace(address) == "" {
				continue
			} else if _, err := mail.ParseAddress(address); err != nil {
				invalid("invalid recipient address '%v' (%v)", address, err)
			}
		}
	}

	if _, err := template.New("subject").Parse(c.Mail.Subject); err != nil {
		invalid("invalid MAIL_SUBJECT template (%v)", err)
	}

	switch c.Mail.Transport {
	case TransportGmail:
	case TransportSMTP:
		if strings.TrimSpace(c.SMTP.Address) == "" {
			invalid("SMTP_ADDRESS is required for the 'smtp' transport")
		}

		switch c.SMTP.Security {
		case "none", "starttls", "tls":
		default:
			invalid("invalid SMTP_SECURITY '%v' - expected none, starttls or tls", c.SMTP.Security)
		}

	default:
		invalid("invalid MAIL_TRANSPORT '%v' - expected gmail or smtp", c.Mail.Transport)
	}

	if c.Retry.Attempts < 1 {
		invalid("RETRY_ATTEMPTS must be at least 1 (%v)", c.Retry.Attempts)
	}

	if c.Retry.Wait < 0 {
		invalid("RETRY_WAIT may not be negative (%v)", c.Retry.Wait)
	}

	for _, col := range []string{c.Scan.Column, c.Area.FirstColumn, c.Area.LastColumn} {
		if _, err := excelize.ColumnNameToNumber(col); err != nil {
			invalid("invalid column '%v' (%v)", col, err)
		}
	}

	if first, err := excelize.ColumnNameToNumber(c.Area.FirstColumn); err == nil {
		if last, err := excelize.ColumnNameToNumber(c.Area.LastColumn); err == nil && last < first {
			invalid("AREA_LAST_COLUMN %v precedes AREA_FIRST_COLUMN %v", c.Area.LastColumn, c.Area.FirstColumn)
		}
	}

	if c.Scan.FirstRow < 1 {
		invalid("SCAN_FIRST_ROW must be at least 1 (%v)", c.Scan.FirstRow)
	}

	if c.Scan.Step < 1 {
		invalid("SCAN_STEP must be at least 1 (%v)", c.Scan.Step)
	}

	if c.Scan.MaxRow < c.Scan.FirstRow {
		invalid("SCAN_MAX_ROW %v precedes SCAN_FIRST_ROW %v", c.Scan.MaxRow, c.Scan.FirstRow)
	}

	if c.Area.Rows < 1 {
		invalid("AREA_ROWS must be at least 1 (%v)", c.Area.Rows)
	}

	if c.Scan.FirstRow+c.Area.Offset < 1 {
		invalid("AREA_OFFSET %v places the print area above row 1", c.Area.Offset)
	}

	for _, layout := range []string{c.SheetFormat, c.DateFormat, c.AttachmentFormat} {
		if strings.TrimSpace(layout) == "" {
			invalid("date layouts may not be blank")
		}
	}

	if _, err := c.Location(); err != nil {
		invalid("invalid TIMEZONE '%v' (%v)", c.Timezone, err)
	}

	if c.Render.DPI < 24 || c.Render.DPI > 600 {
		invalid("RENDER_DPI %v out of range [24..600]", c.Render.DPI)
	}

	return errors.Join(errs...)
}

// Location returns the time zone used to determine the report date.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "Local") {
		return time.Local, nil
	}

	return time.LoadLocation(c.Timezone)
}

// Exists returns true if the file exists. Used to give the missing credentials file a
// more helpful error message.
func Exists(path string) bool {
	_, err := os.Stat(path)

	return err == nil
}
