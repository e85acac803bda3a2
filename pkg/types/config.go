package types

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// FitMode selects how a source page is mapped into the target rectangle.
type FitMode string

const (
	// FitContain scales uniformly so the whole source fits inside the target.
	FitContain FitMode = "contain"
	// FitCover scales uniformly so the target is fully covered; overflow is clipped.
	FitCover FitMode = "cover"
	// FitStretch scales each axis independently to fill the target exactly.
	FitStretch FitMode = "stretch"
)

// Valid reports whether m is one of the recognized fit modes.
func (m FitMode) Valid() bool {
	switch m {
	case FitContain, FitCover, FitStretch:
		return true
	}
	return false
}

// HAlign positions content horizontally inside the target rectangle.
type HAlign string

const (
	HAlignAuto   HAlign = "auto"
	HAlignLeft   HAlign = "left"
	HAlignCenter HAlign = "center"
	HAlignRight  HAlign = "right"
)

// Valid reports whether a is a recognized alignment. The empty value means center.
func (a HAlign) Valid() bool {
	switch a {
	case "", HAlignAuto, HAlignLeft, HAlignCenter, HAlignRight:
		return true
	}
	return false
}

// VAlign positions content vertically inside the target rectangle.
type VAlign string

const (
	VAlignTop    VAlign = "top"
	VAlignCenter VAlign = "center"
	VAlignBottom VAlign = "bottom"
)

// Valid reports whether a is a recognized alignment. The empty value means center.
func (a VAlign) Valid() bool {
	switch a {
	case "", VAlignTop, VAlignCenter, VAlignBottom:
		return true
	}
	return false
}

// Layout selects how many source pages share one output page.
type Layout string

const (
	// LayoutSingle writes one output page per source page.
	LayoutSingle Layout = "single"
	// LayoutTwoUp stacks two consecutive source pages on each output page.
	LayoutTwoUp Layout = "two-up"
)

// Valid reports whether l is a recognized layout. The empty value means single.
func (l Layout) Valid() bool {
	switch l {
	case "", LayoutSingle, LayoutTwoUp:
		return true
	}
	return false
}

// SlotsPerPage returns the number of source pages placed on each output page.
func (l Layout) SlotsPerPage() int {
	if l == LayoutTwoUp {
		return 2
	}
	return 1
}

// PageSource is the Page value that derives the target page from each source page.
const PageSource = "source"

// Defaults applied when the corresponding ConversionConfig field is zero.
const (
	DefaultAutoLeftMin = 0.45
	DefaultAutoLeftGap = 25.0
)

// ConversionConfig controls how a label PDF is reshaped. It is an immutable
// value: callers build one per conversion and pass it by value.
//
// Zero values are meaningful for every field except Scale and Fit, which
// must always be set (see Validate).
type ConversionConfig struct {
	// Scale multiplies the base page dimensions (source page or Page preset)
	// to produce the target page size.
	Scale float64 `json:"scale" yaml:"scale" mapstructure:"scale"`

	// Fit selects contain, cover or stretch.
	Fit FitMode `json:"fit" yaml:"fit" mapstructure:"fit"`

	// Page is "source" (or empty), a named preset, or WIDTHxHEIGHT in points.
	Page string `json:"page,omitempty" yaml:"page,omitempty" mapstructure:"page"`

	// Margin insets the target rectangle on every side, in points.
	Margin float64 `json:"margin,omitempty" yaml:"margin,omitempty" mapstructure:"margin"`

	// Rotate is applied clockwise to every source page, in multiples of 90.
	Rotate int `json:"rotate,omitempty" yaml:"rotate,omitempty" mapstructure:"rotate"`

	// Zoom is an extra multiplier applied after the fit scale (0 means 1).
	Zoom float64 `json:"zoom,omitempty" yaml:"zoom,omitempty" mapstructure:"zoom"`

	// LeftRatio keeps this fraction of the displayed page width, measured
	// from the left edge (0 means 1).
	LeftRatio float64 `json:"left_ratio,omitempty" yaml:"left_ratio,omitempty" mapstructure:"left_ratio"`

	// AutoLeft detects LeftRatio per page from the rendered page. It
	// overrides LeftRatio.
	AutoLeft bool `json:"auto_left,omitempty" yaml:"auto_left,omitempty" mapstructure:"auto_left"`

	// AutoLeftMin is the lowest ratio detection may return (0 means 0.45).
	AutoLeftMin float64 `json:"auto_left_min,omitempty" yaml:"auto_left_min,omitempty" mapstructure:"auto_left_min"`

	// AutoLeftMargin is added to the right of the detected cut, in pixels at
	// the detection resolution.
	AutoLeftMargin float64 `json:"auto_left_margin,omitempty" yaml:"auto_left_margin,omitempty" mapstructure:"auto_left_margin"`

	// AutoLeftGap is the width of the blank column run that marks the cut,
	// in pixels at the detection resolution (0 means 25).
	AutoLeftGap float64 `json:"auto_left_gap,omitempty" yaml:"auto_left_gap,omitempty" mapstructure:"auto_left_gap"`

	HAlign       HAlign  `json:"halign,omitempty" yaml:"halign,omitempty" mapstructure:"halign"`
	HAlignOffset float64 `json:"halign_offset,omitempty" yaml:"halign_offset,omitempty" mapstructure:"halign_offset"`
	HAlignBleed  float64 `json:"halign_bleed,omitempty" yaml:"halign_bleed,omitempty" mapstructure:"halign_bleed"`
	VAlign       VAlign  `json:"valign,omitempty" yaml:"valign,omitempty" mapstructure:"valign"`

	// Layout is single or two-up.
	Layout Layout `json:"layout,omitempty" yaml:"layout,omitempty" mapstructure:"layout"`

	// DebugBoxes strokes the target and destination rectangles.
	DebugBoxes bool `json:"debug_boxes,omitempty" yaml:"debug_boxes,omitempty" mapstructure:"debug_boxes"`
}

// Validate checks every field and returns an error wrapping
// ErrInvalidConfiguration for the first out-of-range value.
func (c ConversionConfig) Validate() error {
	if math.IsNaN(c.Scale) || math.IsInf(c.Scale, 0) || c.Scale <= 0 {
		return fmt.Errorf("%w: scale must be a positive number, got %v", ErrInvalidConfiguration, c.Scale)
	}
	if !c.Fit.Valid() {
		return fmt.Errorf("%w: fit must be contain, cover or stretch, got %q", ErrInvalidConfiguration, c.Fit)
	}
	if c.Rotate%90 != 0 {
		return fmt.Errorf("%w: rotate must be a multiple of 90, got %d", ErrInvalidConfiguration, c.Rotate)
	}
	if badFloat(c.Margin) || c.Margin < 0 {
		return fmt.Errorf("%w: margin must be >= 0, got %v", ErrInvalidConfiguration, c.Margin)
	}
	if badFloat(c.Zoom) || c.Zoom < 0 {
		return fmt.Errorf("%w: zoom must be >= 0, got %v", ErrInvalidConfiguration, c.Zoom)
	}
	if badFloat(c.LeftRatio) || c.LeftRatio < 0 || c.LeftRatio > 1 {
		return fmt.Errorf("%w: left_ratio must be within (0, 1], got %v", ErrInvalidConfiguration, c.LeftRatio)
	}
	if badFloat(c.AutoLeftMin) || c.AutoLeftMin < 0 || c.AutoLeftMin > 1 {
		return fmt.Errorf("%w: auto_left_min must be within [0, 1], got %v", ErrInvalidConfiguration, c.AutoLeftMin)
	}
	if badFloat(c.AutoLeftGap) || c.AutoLeftGap < 0 || badFloat(c.AutoLeftMargin) || c.AutoLeftMargin < 0 {
		return fmt.Errorf("%w: auto_left_gap and auto_left_margin must be >= 0", ErrInvalidConfiguration)
	}
	if badFloat(c.HAlignOffset) || badFloat(c.HAlignBleed) || c.HAlignBleed < 0 {
		return fmt.Errorf("%w: halign_bleed must be >= 0 and halign_offset finite", ErrInvalidConfiguration)
	}
	if !c.HAlign.Valid() {
		return fmt.Errorf("%w: halign must be auto, left, center or right, got %q", ErrInvalidConfiguration, c.HAlign)
	}
	if !c.VAlign.Valid() {
		return fmt.Errorf("%w: valign must be top, center or bottom, got %q", ErrInvalidConfiguration, c.VAlign)
	}
	if !c.Layout.Valid() {
		return fmt.Errorf("%w: layout must be single or two-up, got %q", ErrInvalidConfiguration, c.Layout)
	}
	if !c.DerivesPage() {
		size, err := ParsePageSize(c.Page)
		if err != nil {
			return err
		}
		if 2*c.Margin >= size.Width*c.Scale || 2*c.Margin >= size.Height*c.Scale {
			return fmt.Errorf("%w: margin %v leaves no printable area on %s", ErrInvalidConfiguration, c.Margin, size)
		}
	}
	return nil
}

func badFloat(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}

// DerivesPage reports whether the target page is derived from each source page.
func (c ConversionConfig) DerivesPage() bool {
	p := strings.ToLower(strings.TrimSpace(c.Page))
	return p == "" || p == PageSource
}

// EffectiveZoom returns Zoom, treating zero as 1.
func (c ConversionConfig) EffectiveZoom() float64 {
	if c.Zoom == 0 {
		return 1
	}
	return c.Zoom
}

// EffectiveLeftRatio returns LeftRatio, treating zero as 1.
func (c ConversionConfig) EffectiveLeftRatio() float64 {
	if c.LeftRatio == 0 {
		return 1
	}
	return c.LeftRatio
}

// EffectiveAutoLeftMin returns AutoLeftMin, treating zero as DefaultAutoLeftMin.
func (c ConversionConfig) EffectiveAutoLeftMin() float64 {
	if c.AutoLeftMin == 0 {
		return DefaultAutoLeftMin
	}
	return c.AutoLeftMin
}

// EffectiveAutoLeftGap returns AutoLeftGap, treating zero as DefaultAutoLeftGap.
func (c ConversionConfig) EffectiveAutoLeftGap() float64 {
	if c.AutoLeftGap == 0 {
		return DefaultAutoLeftGap
	}
	return c.AutoLeftGap
}

// NormalizedRotate returns Rotate folded into [0, 360).
func (c ConversionConfig) NormalizedRotate() int {
	r := c.Rotate % 360
	if r < 0 {
		r += 360
	}
	return r
}

// Preset names accepted by Preset.
const (
	PresetDefault = "default"
	PresetLabel   = "label"
)

// DefaultConfig returns the neutral configuration: the target page is the
// source page at scale 1 and content is contained and centered.
func DefaultConfig() ConversionConfig {
	return ConversionConfig{
		Scale: 1,
		Fit:   FitContain,
	}
}

// LabelConfig returns the settings tuned for Mondial Relay / InPost labels:
// the label half of each page is detected, rotated a quarter turn and
// enlarged onto a portrait A4 sheet.
func LabelConfig() ConversionConfig {
	return ConversionConfig{
		Scale:          1,
		Fit:            FitContain,
		Page:           "a4",
		Margin:         12,
		Rotate:         90,
		Zoom:           2,
		AutoLeft:       true,
		AutoLeftMin:    DefaultAutoLeftMin,
		AutoLeftMargin: 8,
		AutoLeftGap:    DefaultAutoLeftGap,
		HAlign:         HAlignAuto,
		HAlignOffset:   -6,
		HAlignBleed:    30,
		VAlign:         VAlignTop,
		Layout:         LayoutSingle,
	}
}

// Preset returns the named configuration.
func Preset(name string) (ConversionConfig, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", PresetDefault:
		return DefaultConfig(), nil
	case PresetLabel, "mondial-relay", "inpost":
		return LabelConfig(), nil
	}
	return ConversionConfig{}, fmt.Errorf("%w: unknown preset %q", ErrInvalidConfiguration, name)
}

// PageSize is a page size in points (1/72 inch).
type PageSize struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

func (p PageSize) String() string {
	return strconv.FormatFloat(p.Width, 'f', -1, 64) + "x" + strconv.FormatFloat(p.Height, 'f', -1, 64)
}

// Portrait returns p with the longer side as height.
func (p PageSize) Portrait() PageSize {
	if p.Height < p.Width {
		return PageSize{Width: p.Height, Height: p.Width}
	}
	return p
}

// pagePresets maps preset names to portrait sizes in points.
var pagePresets = map[string]PageSize{
	"a4":     {Width: 595.276, Height: 841.89},
	"a5":     {Width: 419.528, Height: 595.276},
	"a6":     {Width: 297.638, Height: 419.528},
	"letter": {Width: 612, Height: 792},
	"4x6":    {Width: 288, Height: 432},
}

var explicitPageSize = regexp.MustCompile(`^\s*(\d+(?:\.\d+)?)\s*x\s*(\d+(?:\.\d+)?)\s*$`)

// ParsePageSize parses a preset name (a4, a5, a6, letter, 4x6) or an explicit
// WIDTHxHEIGHT size in points. Presets take precedence over explicit sizes.
func ParsePageSize(value string) (PageSize, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	if p, ok := pagePresets[v]; ok {
		return p, nil
	}
	m := explicitPageSize.FindStringSubmatch(v)
	if m == nil {
		return PageSize{}, fmt.Errorf("%w: invalid page size %q: use a4, a5, a6, letter, 4x6 or WIDTHxHEIGHT in points (e.g. 595x842)",
			ErrInvalidConfiguration, value)
	}
	w, _ := strconv.ParseFloat(m[1], 64)
	h, _ := strconv.ParseFloat(m[2], 64)
	if w <= 0 || h <= 0 {
		return PageSize{}, fmt.Errorf("%w: page size %q has a zero dimension", ErrInvalidConfiguration, value)
	}
	return PageSize{Width: w, Height: h}, nil
}

// ServerConfig holds settings for the HTTP service.
type ServerConfig struct {
	Host string `json:"host" yaml:"host" mapstructure:"host"`
	Port int    `json:"port" yaml:"port" mapstructure:"port"`

	// BodyLimitMB caps the request body size.
	BodyLimitMB int `json:"body_limit_mb" yaml:"body_limit_mb" mapstructure:"body_limit_mb"`

	// RateLimit is the number of conversions a client may request per
	// RateInterval. Zero disables limiting.
	RateLimit    int           `json:"rate_limit" yaml:"rate_limit" mapstructure:"rate_limit"`
	RateInterval time.Duration `json:"rate_interval" yaml:"rate_interval" mapstructure:"rate_interval"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`

	// UI serves the browser upload page on GET /.
	UI bool `json:"ui" yaml:"ui" mapstructure:"ui"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + strconv.Itoa(s.Port)
}

// LogConfig holds logging settings. An empty File logs to stderr.
type LogConfig struct {
	Level      string `json:"level" yaml:"level" mapstructure:"level"`
	File       string `json:"file,omitempty" yaml:"file,omitempty" mapstructure:"file"`
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" yaml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `json:"compress" yaml:"compress" mapstructure:"compress"`
}

// CacheConfig holds settings for the Redis result cache. An empty RedisAddr
// disables caching. When Password is empty it is read from the
// redis-password file in SecretsDir, if there is one.
type CacheConfig struct {
	RedisAddr  string        `json:"redis_addr,omitempty" yaml:"redis_addr,omitempty" mapstructure:"redis_addr"`
	Password   string        `json:"-" yaml:"-" mapstructure:"password"`
	SecretsDir string        `json:"secrets_dir,omitempty" yaml:"secrets_dir,omitempty" mapstructure:"secrets_dir"`
	DB         int           `json:"db" yaml:"db" mapstructure:"db"`
	RateDB     int           `json:"rate_db" yaml:"rate_db" mapstructure:"rate_db"`
	TTL        time.Duration `json:"ttl" yaml:"ttl" mapstructure:"ttl"`
}

// Enabled reports whether a Redis address is configured.
func (c CacheConfig) Enabled() bool {
	return c.RedisAddr != ""
}

// HistoryConfig holds settings for the conversion journal. An empty Path
// disables the journal.
type HistoryConfig struct {
	Path string `json:"path,omitempty" yaml:"path,omitempty" mapstructure:"path"`
}

// AppConfig groups every section of the configuration file.
type AppConfig struct {
	Server     ServerConfig     `json:"server" yaml:"server" mapstructure:"server"`
	Log        LogConfig        `json:"log" yaml:"log" mapstructure:"log"`
	Cache      CacheConfig      `json:"cache" yaml:"cache" mapstructure:"cache"`
	History    HistoryConfig    `json:"history" yaml:"history" mapstructure:"history"`
	Conversion ConversionConfig `json:"conversion" yaml:"conversion" mapstructure:"conversion"`
}
