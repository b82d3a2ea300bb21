package auth

import (
	"context"
	"errors"
)

var (
	ErrNoPrincipal   = errors.New("request carries no authenticated account")
	ErrActorMismatch = errors.New("actor differs from authenticated account")
)

type principalKey struct{}

// WithPrincipal returns ctx carrying the account that authenticated the call.
func WithPrincipal(ctx context.Context, account string) context.Context {
	return context.WithValue(ctx, principalKey{}, account)
}

func PrincipalFrom(ctx context.Context) (string, bool) {
	account, ok := ctx.Value(principalKey{}).(string)
	return account, ok && account != ""
}

// ContextVerifier accepts an actor only when it is the account placed in the
// context by the auth middleware.
type ContextVerifier struct{}

func (ContextVerifier) Verify(ctx context.Context, actor string) error {
	principal, ok := PrincipalFrom(ctx)
	if !ok {
		return ErrNoPrincipal
	}
	if principal != actor {
		return ErrActorMismatch
	}
	return nil
}
