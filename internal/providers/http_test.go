package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storylab-engine/internal/common/errors"
)

func TestHTTPProvider_Generate(t *testing.T) {
	var gotAuth string
	var gotReq Request

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/generate", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"output":      "a story",
			"tokens_used": 12,
			"model":       "gpt-test",
		})
	}))
	defer srv.Close()

	p, err := NewHTTPProvider(Config{Name: "remote", BaseURL: srv.URL, APIKey: "sekret"})
	require.NoError(t, err)

	result, err := p.Generate(context.Background(), &Request{
		Kind:   KindText,
		Model:  "gpt-test",
		Prompt: "write",
	})
	require.NoError(t, err)

	assert.Equal(t, "a story", result.Output)
	assert.Equal(t, 12, result.TokensUsed)
	assert.Equal(t, "gpt-test", result.Model)
	assert.Equal(t, "Bearer sekret", gotAuth)
	assert.Equal(t, KindText, gotReq.Kind)
	assert.NotEmpty(t, result.Raw)
}

func TestHTTPProvider_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p, err := NewHTTPProvider(Config{Name: "remote", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = p.Generate(context.Background(), &Request{Kind: KindText, Prompt: "x"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeExecution))
}

func TestHTTPProvider_ErrorField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"error": "model not found"})
	}))
	defer srv.Close()

	p, err := NewHTTPProvider(Config{Name: "remote", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = p.Generate(context.Background(), &Request{Kind: KindText, Prompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not found")
}

func TestHTTPProvider_ContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	p, err := NewHTTPProvider(Config{Name: "remote", BaseURL: srv.URL})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = p.Generate(ctx, &Request{Kind: KindText, Prompt: "x"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeTimeout))
}

func TestHTTPProvider_RequiresNameAndURL(t *testing.T) {
	_, err := NewHTTPProvider(Config{BaseURL: "http://x"})
	assert.Error(t, err)

	_, err = NewHTTPProvider(Config{Name: "x"})
	assert.Error(t, err)
}

func TestRegistry_RegisterGetNames(t *testing.T) {
	r := NewRegistry()
	r.Register(NewStaticProvider("static"))
	r.Register(NewStaticProvider("other"))

	p, err := r.Get("static")
	require.NoError(t, err)
	assert.Equal(t, "static", p.Name())

	_, err = r.Get("missing")
	assert.Error(t, err)

	assert.Equal(t, []string{"other", "static"}, r.Names())
}

func TestStaticProvider_Kinds(t *testing.T) {
	p := NewStaticProvider("static")

	text, err := p.Generate(context.Background(), &Request{Kind: KindText, Prompt: "hello there"})
	require.NoError(t, err)
	assert.Equal(t, "hello there", text.Output)

	image, err := p.Generate(context.Background(), &Request{Kind: KindImage, Model: "img-1"})
	require.NoError(t, err)
	assert.Equal(t, "static://image/img-1", image.Output)

	video, err := p.Generate(context.Background(), &Request{Kind: KindVideo, Model: "vid-1"})
	require.NoError(t, err)
	assert.Equal(t, "static://video/vid-1", video.Output)
}

func TestKindForNodeType(t *testing.T) {
	kind, ok := KindForNodeType("text_generation")
	require.True(t, ok)
	assert.Equal(t, KindText, kind)

	_, ok = KindForNodeType("data_processing")
	assert.False(t, ok)
}
