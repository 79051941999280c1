package lambdaadapter

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
)

func echoHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/echo", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Method", r.Method)
		w.Header().Set("X-Query", r.URL.Query().Get("id"))
		w.Header().Set("X-Auth", r.Header.Get("Authorization"))
		http.SetCookie(w, &http.Cookie{Name: "a", Value: "1"})
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write(body)
	})
	mux.HandleFunc("/api/blob", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte{0x25, 0x50, 0x44, 0x46, 0x00, 0xff})
	})
	return mux
}

func TestHandle_JSONRoundTrip(t *testing.T) {
	a := New(echoHandler())

	event := events.APIGatewayV2HTTPRequest{
		RawPath:         "/api/echo",
		RawQueryString:  "id=42",
		Headers:         map[string]string{"authorization": "Bearer abc", "content-type": "application/json"},
		Body:            base64.StdEncoding.EncodeToString([]byte(`{"ok":true}`)),
		IsBase64Encoded: true,
	}
	event.RequestContext.HTTP.Method = http.MethodPost

	resp, err := a.Handle(context.Background(), event)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if resp.Body != `{"ok":true}` || resp.IsBase64Encoded {
		t.Errorf("body = %q base64=%v", resp.Body, resp.IsBase64Encoded)
	}
	if resp.Headers["X-Method"] != http.MethodPost {
		t.Errorf("method = %q", resp.Headers["X-Method"])
	}
	if resp.Headers["X-Query"] != "42" {
		t.Errorf("query = %q", resp.Headers["X-Query"])
	}
	if resp.Headers["X-Auth"] != "Bearer abc" {
		t.Errorf("auth = %q", resp.Headers["X-Auth"])
	}
	if len(resp.Cookies) != 1 || resp.Cookies[0] != "a=1" {
		t.Errorf("cookies = %v", resp.Cookies)
	}
}

func TestHandle_BinaryBody(t *testing.T) {
	a := New(echoHandler())

	event := events.APIGatewayV2HTTPRequest{RawPath: "/api/blob"}
	event.RequestContext.HTTP.Method = http.MethodGet

	resp, err := a.Handle(context.Background(), event)
	if err != nil {
		t.Fatal(err)
	}
	if !resp.IsBase64Encoded {
		t.Fatal("binary response should be base64 encoded")
	}
	raw, err := base64.StdEncoding.DecodeString(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if len(raw) != 6 || raw[5] != 0xff {
		t.Errorf("decoded body = %v", raw)
	}
}

func TestHandle_BadBase64(t *testing.T) {
	a := New(echoHandler())
	event := events.APIGatewayV2HTTPRequest{RawPath: "/api/echo", Body: "%%%", IsBase64Encoded: true}
	if _, err := a.Handle(context.Background(), event); err == nil {
		t.Fatal("expected decode error")
	}
}
