package reload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"
)

// Extension is one entry on the extensions-management page.
type Extension struct {
	Name             string `json:"name"`
	ID               string `json:"id"`
	HasReloadControl bool   `json:"hasReloadControl"`
}

// Target identifies the extension to reload. ID takes precedence over Name.
type Target struct {
	ID   string
	Name string
}

// String returns the lookup key that will be used.
func (t Target) String() string {
	if t.ID != "" {
		return t.ID
	}

	return t.Name
}

// Outcome describes a successful reload.
type Outcome struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// Session is an open connection to the extensions-management page.
type Session interface {
	// Extensions enumerates the installed extensions.
	Extensions(ctx context.Context) ([]Extension, error)

	// Reload presses the reload control of the extension with id.
	Reload(ctx context.Context, id string) error

	// Close releases the page and the browser connection.
	Close() error
}

// Browser opens sessions against a remote browser.
type Browser interface {
	Open(ctx context.Context) (Session, error)
}

var (
	// ErrNoBrowserContext is returned by Browser implementations when the
	// endpoint exposes no browsing context to open a page in.
	ErrNoBrowserContext = errors.New("no browser context available over the remote debugging endpoint")

	// ErrTargetNotFound matches every *TargetNotFoundError.
	ErrTargetNotFound = errors.New("extension not found")

	// ErrReloadControlUnavailable matches every *ReloadControlUnavailableError.
	ErrReloadControlUnavailable = errors.New("reload control unavailable")
)

// TargetNotFoundError carries the enumerated extensions for diagnostics.
type TargetNotFoundError struct {
	Target    Target
	Available []Extension
}

func (e *TargetNotFoundError) Error() string {
	var msg string
	if e.Target.ID != "" {
		msg = fmt.Sprintf("extension with id '%s' not found on the extensions page", e.Target.ID)
	} else {
		msg = fmt.Sprintf("extension named '%s' not found on the extensions page", e.Target.Name)
	}

	available, err := json.Marshal(e.Available)
	if err != nil || len(e.Available) == 0 {
		return msg + "; no extensions visible"
	}

	return fmt.Sprintf("%s; available extensions: %s", msg, available)
}

func (e *TargetNotFoundError) Is(target error) bool { return target == ErrTargetNotFound }

// ReloadControlUnavailableError is returned when the target has no reload
// control, which usually means developer mode is switched off.
type ReloadControlUnavailableError struct {
	Extension Extension
}

func (e *ReloadControlUnavailableError) Error() string {
	if e.Extension.ID == "" {
		return fmt.Sprintf("reload control unavailable for %s: its id is not shown on the extensions page, enable Developer mode",
			e.Extension.Name)
	}

	return fmt.Sprintf("reload control unavailable for %s (%s): enable Developer mode on the extensions page",
		e.Extension.Name, e.Extension.ID)
}

func (e *ReloadControlUnavailableError) Is(target error) bool {
	return target == ErrReloadControlUnavailable
}

var extensionIDPattern = regexp.MustCompile(`[a-p]{32}`)

// ParseExtensionID extracts the first 32-character a-p identifier from text,
// such as the "ID: ..." label shown on the extensions page.
func ParseExtensionID(text string) string {
	return extensionIDPattern.FindString(text)
}

// Resolve finds target among exts: by ID when one is set, otherwise by exact
// display name. The first match wins.
func Resolve(exts []Extension, target Target) (Extension, error) {
	for _, ext := range exts {
		if target.ID != "" {
			if ext.ID == target.ID {
				return ext, nil
			}

			continue
		}

		if ext.Name == target.Name {
			return ext, nil
		}
	}

	return Extension{}, &TargetNotFoundError{Target: target, Available: exts}
}

// Client reloads extensions through a Browser.
type Client struct {
	browser Browser
	timeout time.Duration
	logger  *slog.Logger
}

// NewClient returns a Client. A positive timeout bounds each call.
func NewClient(browser Browser, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{browser: browser, timeout: timeout, logger: logger}
}

// Reload opens a session, resolves target and presses its reload control.
// The session is closed on every path before Reload returns.
func (c *Client) Reload(ctx context.Context, target Target) (*Outcome, error) {
	var outcome *Outcome

	err := c.withSession(ctx, func(ctx context.Context, s Session) error {
		exts, err := s.Extensions(ctx)
		if err != nil {
			return fmt.Errorf("listing extensions: %w", err)
		}

		ext, err := Resolve(exts, target)
		if err != nil {
			return err
		}

		// Without an id the control cannot be addressed on the page.
		if !ext.HasReloadControl || ext.ID == "" {
			return &ReloadControlUnavailableError{Extension: ext}
		}

		if err := s.Reload(ctx, ext.ID); err != nil {
			return fmt.Errorf("reloading %s: %w", ext.ID, err)
		}

		outcome = &Outcome{Name: ext.Name, ID: ext.ID}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return outcome, nil
}

// List returns every extension visible on the extensions page.
func (c *Client) List(ctx context.Context) ([]Extension, error) {
	var exts []Extension

	err := c.withSession(ctx, func(ctx context.Context, s Session) error {
		var err error

		exts, err = s.Extensions(ctx)
		if err != nil {
			return fmt.Errorf("listing extensions: %w", err)
		}

		return nil
	})

	return exts, err
}

func (c *Client) withSession(ctx context.Context, fn func(context.Context, Session) error) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	s, err := c.browser.Open(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := s.Close(); closeErr != nil {
			c.logger.Debug("closing browser session", slog.String("error", closeErr.Error()))
		}
	}()

	return fn(ctx, s)
}
