package youtube

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// AuthorizeLoopback runs the installed-app flow with a redirect to a temporary local
// listener. prompt receives the consent URL for the operator to open.
func AuthorizeLoopback(ctx context.Context, cfg *oauth2.Config, prompt func(url string)) (*oauth2.Token, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("listen for oauth redirect: %w", err)
	}
	defer listener.Close()

	flowCfg := *cfg
	flowCfg.RedirectURL = fmt.Sprintf("http://%s/", listener.Addr().String())
	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()

	type result struct {
		code string
		err  error
	}
	results := make(chan result, 1)
	server := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			switch {
			case q.Get("state") != state:
				http.Error(w, "state mismatch", http.StatusBadRequest)
				return
			case q.Get("error") != "":
				http.Error(w, "authorization denied", http.StatusForbidden)
				results <- result{err: fmt.Errorf("authorization denied: %s", q.Get("error"))}
			case q.Get("code") == "":
				http.Error(w, "missing code", http.StatusBadRequest)
				return
			default:
				fmt.Fprintln(w, "ytarchive is authorized. You can close this window.")
				results <- result{code: q.Get("code")}
			}
		}),
	}
	go func() { _ = server.Serve(listener) }()
	defer server.Close()

	prompt(flowCfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce, oauth2.S256ChallengeOption(verifier)))

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-results:
		if res.err != nil {
			return nil, res.err
		}
		tok, err := flowCfg.Exchange(ctx, res.code, oauth2.VerifierOption(verifier))
		if err != nil {
			return nil, fmt.Errorf("exchange authorization code: %w", err)
		}
		if tok.RefreshToken == "" {
			return nil, errors.New("token response carried no refresh token; revoke prior consent and retry")
		}
		return tok, nil
	}
}
