package browser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePage struct {
	navigated    string
	clicked      []string
	attached     bool
	waitForFails map[string]bool
}

func (f *fakePage) Navigate(ctx context.Context, url string) error { f.navigated = url; return nil }
func (f *fakePage) Click(ctx context.Context, selector string) error {
	f.clicked = append(f.clicked, selector)
	return nil
}
func (f *fakePage) Fill(ctx context.Context, selector, text string) error { return nil }
func (f *fakePage) PressEnter(ctx context.Context, selector string) error { return nil }
func (f *fakePage) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	if f.waitForFails[selector] {
		return assertErr{}
	}
	return nil
}
func (f *fakePage) WaitIdle(ctx context.Context, quiet time.Duration) error { return nil }
func (f *fakePage) Query(ctx context.Context, selector string) ([]Node, error) { return nil, nil }
func (f *fakePage) Text(ctx context.Context, selector string) (string, error) { return "", nil }
func (f *fakePage) AttachIframe(ctx context.Context, mainSelector, iframeSelector string) error {
	f.attached = true
	return nil
}
func (f *fakePage) Close() error { return nil }

type assertErr struct{}

func (assertErr) Error() string { return "not found" }

func TestDriverOpen_DismissesFirstAvailableConsentSelector(t *testing.T) {
	fp := &fakePage{waitForFails: map[string]bool{consentSelectors[0]: true}}
	restore := newPage
	newPage = func(Options) (BrowserPage, error) { return fp, nil }
	defer func() { newPage = restore }()

	d, err := New(Options{Headless: true, Timeout: time.Second}, nil)
	require.NoError(t, err)

	page, err := d.Open(context.Background(), "https://example.test/schedule")
	require.NoError(t, err)
	assert.Same(t, fp, page)
	assert.Equal(t, "https://example.test/schedule", fp.navigated)
	assert.True(t, fp.attached)
	assert.Contains(t, fp.clicked, consentSelectors[1])
}

func TestDriverOpen_NoConsentOverlayIsNotAnError(t *testing.T) {
	fp := &fakePage{waitForFails: map[string]bool{
		consentSelectors[0]: true, consentSelectors[1]: true,
		consentSelectors[2]: true, consentSelectors[3]: true,
	}}
	restore := newPage
	newPage = func(Options) (BrowserPage, error) { return fp, nil }
	defer func() { newPage = restore }()

	d, err := New(Options{}, nil)
	require.NoError(t, err)

	_, err = d.Open(context.Background(), "https://example.test/schedule")
	require.NoError(t, err)
	assert.Empty(t, fp.clicked)
}
