package schlussel

import (
	"net/url"
	"os/exec"
	"runtime"
)

// BrowserOpener is the external browser port the flow engine calls to
// surface the authorization URL to the user (spec.md §6, "open_url(url) →
// ok | error"). A failure here is non-fatal to the flow: the caller can
// still complete authorization by navigating to the printed URL manually.
type BrowserOpener interface {
	OpenURL(rawURL string) error
}

// defaultBrowserOpener shells out to the platform's URL handler, the same
// three-way OS switch the teacher's OpenBrowser uses.
type defaultBrowserOpener struct{}

// DefaultBrowserOpener is the BrowserOpener used when a Client is not
// configured with one explicitly.
var DefaultBrowserOpener BrowserOpener = defaultBrowserOpener{}

// browserLauncher starts the command that opens the URL. Swapped out in
// tests so OpenURL's validation path can be exercised without spawning a
// real browser process.
var browserLauncher = func(cmd *exec.Cmd) error { return cmd.Start() }

func (defaultBrowserOpener) OpenURL(rawURL string) error {
	if rawURL == "" {
		return newError(KindInvalidParameter, "url must not be empty", nil)
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errorf(KindInvalidParameter, err, "invalid url %q", rawURL)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return newError(KindInvalidParameter, "only http and https urls may be opened", nil)
	}

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "linux":
		cmd = exec.Command("xdg-open", rawURL)
	case "darwin":
		cmd = exec.Command("open", rawURL)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", rawURL)
	default:
		return newError(KindUnsupported, "opening a browser is not supported on "+runtime.GOOS, nil)
	}

	if err := browserLauncher(cmd); err != nil {
		return errorf(KindIO, err, "failed to launch browser")
	}
	return nil
}

// noopBrowserOpener never attempts to launch anything; useful for device
// flow or headless contexts where only the code/URL is printed.
type noopBrowserOpener struct{}

func (noopBrowserOpener) OpenURL(string) error { return nil }

// NoopBrowserOpener is a BrowserOpener that does nothing, for callers that
// only want the printed user_code / verification_uri.
var NoopBrowserOpener BrowserOpener = noopBrowserOpener{}
