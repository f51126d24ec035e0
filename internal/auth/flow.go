// internal/auth/flow.go
// The authentication state machine: identity-provider login with optional
// push MFA, followed by the SSO hand-off into the ticketing application.
//
// Every fatal step aborts the entire login. The one deliberate exception is
// the MFA probe: the push-challenge control only appears for accounts with
// MFA enrolled, so its absence within the probe budget is a success that
// moves the flow straight to dashboard confirmation. Retrying a failed
// login is the caller's decision; the flow never auto-retries.
package auth

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/jirapull/internal/config"
	"github.com/xkilldash9x/jirapull/internal/interact"
)

// Provider console selectors.
var (
	emailField    = interact.CSS(`input[name="email"]`)
	passwordField = interact.CSS(`input[name="password"]`)
	loginButton   = interact.CSS(`button[data-automation="loginButton"]`)
	mfaPushButton = interact.XPath(`//button[@data-test-id='UserLogin__MfaChooser__MfaButtons__push']`)
	// The dashboard search input doubles as the "login approved" signal: it
	// only renders once the console has authenticated the session.
	dashboardSearch = interact.CSS(`input[type="search"]`)
	// SSO tile for the Atlassian application.
	jiraAppLink = interact.CSS(`a[href*="sso.jumpcloud.com/saml2/atlassiancloud"]`)
)

// jiraSearchTerm filters the dashboard's application list down to the SSO
// tile before clicking through.
const jiraSearchTerm = "atlassian"

var (
	// ErrMfaTimeout means a push challenge was sent but never approved
	// within the approval budget.
	ErrMfaTimeout = errors.New("MFA approval not received within timeout")

	// ErrDashboardTimeout means the provider dashboard never became ready.
	ErrDashboardTimeout = errors.New("dashboard failed to load within timeout")
)

// State identifies where the authentication flow currently is.
type State string

const (
	StateStart                State = "start"
	StateProviderPageLoaded   State = "provider_page_loaded"
	StateCredentialsSubmitted State = "credentials_submitted"
	StateMfaProbed            State = "mfa_probed"
	StateDashboardReady       State = "dashboard_ready"
	StateHandoffComplete      State = "handoff_complete"
	StateFailed               State = "failed"
)

// Flow sequences the identity-provider login and SSO hand-off over the
// interaction primitives.
type Flow struct {
	prims  *interact.Primitives
	cfg    config.Config
	logger *zap.Logger
	state  State
}

// New creates an authentication flow. The configuration is immutable and
// carries the provider URL, credentials, and every timeout budget.
func New(prims *interact.Primitives, cfg config.Config, logger *zap.Logger) *Flow {
	return &Flow{
		prims:  prims,
		cfg:    cfg,
		logger: logger.Named("auth"),
		state:  StateStart,
	}
}

// State returns the flow's current state.
func (f *Flow) State() State {
	return f.state
}

func (f *Flow) transition(next State) {
	f.logger.Debug("State transition",
		zap.String("from", string(f.state)), zap.String("to", string(next)))
	f.state = next
}

func (f *Flow) fail(err error) error {
	f.transition(StateFailed)
	return err
}

// Login performs the complete provider login: navigation, credential entry,
// MFA probe, and dashboard confirmation.
func (f *Flow) Login(ctx context.Context) error {
	f.logger.Info("Starting provider login", zap.String("url", f.cfg.Provider.URL))

	if err := f.prims.Navigate(ctx, f.cfg.Provider.URL); err != nil {
		return f.fail(err)
	}
	if err := f.prims.WaitForPageReady(ctx, f.cfg.Timeouts.PageLoad); err != nil {
		return f.fail(err)
	}
	f.transition(StateProviderPageLoaded)

	if err := f.enterCredentials(ctx); err != nil {
		return f.fail(fmt.Errorf("credential entry: %w", err))
	}
	f.transition(StateCredentialsSubmitted)

	mfaTriggered, err := f.probeMFA(ctx)
	if err != nil {
		return f.fail(fmt.Errorf("MFA challenge: %w", err))
	}
	f.transition(StateMfaProbed)

	if err := f.awaitDashboard(ctx, mfaTriggered); err != nil {
		return f.fail(err)
	}
	f.transition(StateDashboardReady)

	f.logger.Info("Provider login complete")
	return nil
}

// enterCredentials submits the two-step email/password form. Any primitive
// failure here is fatal.
func (f *Flow) enterCredentials(ctx context.Context) error {
	t := f.cfg.Timeouts

	f.logger.Info("Entering email")
	if err := f.prims.TypeText(ctx, emailField, f.cfg.Provider.Email, t.Input, true); err != nil {
		return err
	}
	if err := f.prims.Click(ctx, loginButton, t.Action, t.ClickRetries); err != nil {
		return err
	}

	f.logger.Info("Entering password")
	if err := f.prims.TypeText(ctx, passwordField, f.cfg.Provider.Password, t.Input, true); err != nil {
		return err
	}
	if err := f.prims.Click(ctx, loginButton, t.Action, t.ClickRetries); err != nil {
		return err
	}

	f.logger.Info("Credentials submitted")
	return nil
}

// probeMFA looks for the push-challenge control within the short probe
// budget. Absence is success: the flow proceeds straight to dashboard
// confirmation. Presence triggers the push; approval then happens on a
// separate device, so the subsequent dashboard wait carries the longer
// budget.
func (f *Flow) probeMFA(ctx context.Context) (bool, error) {
	f.logger.Info("Probing for MFA challenge", zap.Duration("timeout", f.cfg.Timeouts.MFAProbe))

	found, err := f.prims.WaitFor(ctx, mfaPushButton, interact.Visible, f.cfg.Timeouts.MFAProbe)
	if err != nil {
		return false, err
	}
	if !found {
		f.logger.Info("No MFA challenge detected, continuing")
		return false, nil
	}

	if err := f.prims.Click(ctx, mfaPushButton, f.cfg.Timeouts.Action, f.cfg.Timeouts.ClickRetries); err != nil {
		return true, err
	}
	f.logger.Info("MFA push sent, waiting for approval on device",
		zap.Duration("budget", f.cfg.Timeouts.MFAApproval))
	return true, nil
}

// awaitDashboard blocks on the dashboard-ready signal, which doubles as the
// MFA-approved signal when a push was sent. Timing out here is fatal.
func (f *Flow) awaitDashboard(ctx context.Context, mfaTriggered bool) error {
	found, err := f.prims.WaitFor(ctx, dashboardSearch, interact.Visible, f.cfg.Timeouts.MFAApproval)
	if err != nil {
		return err
	}
	if !found {
		if mfaTriggered {
			return ErrMfaTimeout
		}
		return ErrDashboardTimeout
	}
	f.logger.Info("Provider dashboard ready")
	return nil
}

// HandoffToJira searches the dashboard for the Atlassian application,
// clicks through its SSO tile, and switches focus to the tab that opens as
// a result. It returns the new tab's title.
func (f *Flow) HandoffToJira(ctx context.Context) (string, error) {
	if f.state != StateDashboardReady {
		return "", fmt.Errorf("hand-off requires a ready dashboard, state is %q", f.state)
	}
	t := f.cfg.Timeouts

	// The baseline has to predate the tile click; the SSO tab can open
	// before the click call even returns.
	baseline, err := f.prims.WindowCount(ctx)
	if err != nil {
		return "", f.fail(err)
	}

	f.logger.Info("Searching dashboard for application", zap.String("term", jiraSearchTerm))
	if err := f.prims.TypeText(ctx, dashboardSearch, jiraSearchTerm, t.Input, true); err != nil {
		return "", f.fail(fmt.Errorf("application search: %w", err))
	}
	if err := f.prims.Click(ctx, jiraAppLink, t.Action, t.ClickRetries); err != nil {
		return "", f.fail(fmt.Errorf("application click-through: %w", err))
	}

	title, err := f.prims.SwitchToNewTab(ctx, baseline, t.TabSwitch)
	if err != nil {
		return "", f.fail(fmt.Errorf("switching to application tab: %w", err))
	}
	f.transition(StateHandoffComplete)

	f.logger.Info("SSO hand-off complete", zap.String("tab_title", title))
	return title, nil
}
