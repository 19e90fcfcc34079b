package fingerprint

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTransport_GoProfile(t *testing.T) {
	ts := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	rt, err := Transport(ProfileGo)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tr, ok := rt.(*http.Transport)
	if !ok {
		t.Fatalf("expected *http.Transport, got %T", rt)
	}
	// httptest.NewTLSServer uses a self-signed cert.
	tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}

	client := &http.Client{Transport: tr}
	resp, err := client.Get(ts.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestTransport_EmptyDefaultsToGo(t *testing.T) {
	rt, err := Transport("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := rt.(*http.Transport); !ok {
		t.Fatalf("expected *http.Transport, got %T", rt)
	}
}

func TestTransport_BrowserProfilesConstruct(t *testing.T) {
	for _, p := range []Profile{ProfileChrome, ProfileFirefox, ProfileSafari, ProfileRandom} {
		t.Run(string(p), func(t *testing.T) {
			rt, err := Transport(p)
			if err != nil {
				t.Fatalf("unexpected error creating transport for %s: %v", p, err)
			}
			tr, ok := rt.(*http.Transport)
			if !ok {
				t.Fatalf("expected *http.Transport, got %T", rt)
			}
			if tr.DialTLSContext == nil {
				t.Errorf("expected a custom TLS dialer for %s", p)
			}
		})
	}
}

func TestTransport_UnknownProfile(t *testing.T) {
	if _, err := Transport("netscape"); err == nil {
		t.Fatalf("expected error for unknown profile")
	}
}

func TestValid(t *testing.T) {
	for _, name := range []string{"go", "chrome", "firefox", "safari", "random"} {
		if !Valid(name) {
			t.Errorf("expected %q to be valid", name)
		}
	}
	if Valid("ie6") {
		t.Errorf("expected ie6 to be invalid")
	}
}
