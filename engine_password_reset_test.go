package authcore

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPasswordResetFlow(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	engine := newTestEngine(t, store)
	notifier := newRecordingNotifier()
	engine.notifier = notifier
	a := seedAccount(t, store, engine.hasher, "alice@school.test", "Old!pass123")

	if err := engine.RequestPasswordReset(ctx, "alice@school.test"); err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	mail := notifier.waitFor(t, TemplatePasswordReset)
	resetToken := mail.data["token"]
	if resetToken == "" {
		t.Fatal("expected reset token in mail")
	}

	stored := store.get(a.ID)
	if stored.ResetTokenHash == "" || stored.ResetTokenExpires.IsZero() {
		t.Fatal("expected reset token hash and expiry both set")
	}
	if stored.ResetTokenHash == resetToken {
		t.Fatal("reset token must be stored hashed, not raw")
	}

	if err := engine.ResetPassword(ctx, resetToken, "New!pass456"); err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}
	notifier.waitFor(t, TemplatePasswordResetConfirmation)

	// Both-or-neither: consuming the token clears both fields.
	cleared := store.get(a.ID)
	if cleared.ResetTokenHash != "" || !cleared.ResetTokenExpires.IsZero() {
		t.Fatal("expected reset token fields cleared after use")
	}

	if _, err := engine.Login(ctx, "alice@school.test", "Old!pass123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password: got %v, want ErrInvalidCredentials", err)
	}
	if _, err := engine.Login(ctx, "alice@school.test", "New!pass456"); err != nil {
		t.Fatalf("new password login failed: %v", err)
	}
}

func TestPasswordResetSingleUse(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	engine := newTestEngine(t, store)
	notifier := newRecordingNotifier()
	engine.notifier = notifier
	seedAccount(t, store, engine.hasher, "alice@school.test", "Old!pass123")

	if err := engine.RequestPasswordReset(ctx, "alice@school.test"); err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	resetToken := notifier.waitFor(t, TemplatePasswordReset).data["token"]

	if err := engine.ResetPassword(ctx, resetToken, "New!pass456"); err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}
	// Replay inside the TTL still fails: the stored hash is gone.
	if err := engine.ResetPassword(ctx, resetToken, "Other!pass789"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("replay: got %v, want ErrTokenInvalid", err)
	}
}

func TestPasswordResetNewRequestReplacesOld(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	engine := newTestEngine(t, store)
	notifier := newRecordingNotifier()
	engine.notifier = notifier
	seedAccount(t, store, engine.hasher, "alice@school.test", "Old!pass123")

	if err := engine.RequestPasswordReset(ctx, "alice@school.test"); err != nil {
		t.Fatalf("first request failed: %v", err)
	}
	first := notifier.waitFor(t, TemplatePasswordReset).data["token"]

	if err := engine.RequestPasswordReset(ctx, "alice@school.test"); err != nil {
		t.Fatalf("second request failed: %v", err)
	}
	second := notifier.waitFor(t, TemplatePasswordReset).data["token"]

	if err := engine.ResetPassword(ctx, first, "New!pass456"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("replaced token: got %v, want ErrTokenInvalid", err)
	}
	if err := engine.ResetPassword(ctx, second, "New!pass456"); err != nil {
		t.Fatalf("latest token failed: %v", err)
	}
}

func TestPasswordResetUnknownEmailIsGeneric(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	engine := newTestEngine(t, store)
	notifier := newRecordingNotifier()
	engine.notifier = notifier

	if err := engine.RequestPasswordReset(ctx, "nobody@school.test"); err != nil {
		t.Fatalf("got %v, want nil for unknown address", err)
	}
	select {
	case m := <-notifier.ch:
		t.Fatalf("unexpected notification for unknown address: %v", m.kind)
	default:
	}
}

func TestPasswordResetRequestIneligibleAccounts(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	engine := newTestEngine(t, store)
	notifier := newRecordingNotifier()
	engine.notifier = notifier
	a := seedAccount(t, store, engine.hasher, "alice@school.test", "Old!pass123")

	cases := []struct {
		name   string
		mutate func(a *Account)
	}{
		{"unverified", func(a *Account) { a.Verified = false }},
		{"suspended", func(a *Account) { a.Status = StatusSuspended }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store.mutate(a.ID, func(acc *Account) {
				acc.Verified = true
				acc.Status = StatusActive
			})
			store.mutate(a.ID, tc.mutate)

			// Same generic nil result as an unknown address, but no
			// token is issued, stored, or mailed.
			if err := engine.RequestPasswordReset(ctx, "alice@school.test"); err != nil {
				t.Fatalf("RequestPasswordReset failed: %v", err)
			}
			select {
			case m := <-notifier.ch:
				t.Fatalf("unexpected notification: %v", m.kind)
			default:
			}
			if got := store.get(a.ID); got.ResetTokenHash != "" || !got.ResetTokenExpires.IsZero() {
				t.Fatal("expected no reset token stored")
			}
		})
	}
}

func TestPasswordResetPolicyAndReuse(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	engine := newTestEngine(t, store)
	notifier := newRecordingNotifier()
	engine.notifier = notifier
	seedAccount(t, store, engine.hasher, "alice@school.test", "Old!pass123")

	if err := engine.RequestPasswordReset(ctx, "alice@school.test"); err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	resetToken := notifier.waitFor(t, TemplatePasswordReset).data["token"]

	if err := engine.ResetPassword(ctx, resetToken, "weak"); !errors.Is(err, ErrPasswordPolicy) {
		t.Fatalf("weak password: got %v, want ErrPasswordPolicy", err)
	}
	if err := engine.ResetPassword(ctx, resetToken, "Old!pass123"); !errors.Is(err, ErrPasswordReuse) {
		t.Fatalf("reused password: got %v, want ErrPasswordReuse", err)
	}
	// Policy failures do not consume the token.
	if err := engine.ResetPassword(ctx, resetToken, "New!pass456"); err != nil {
		t.Fatalf("ResetPassword after policy failures failed: %v", err)
	}
}

func TestPasswordResetExpiredWindow(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	engine := newTestEngine(t, store)
	notifier := newRecordingNotifier()
	engine.notifier = notifier
	a := seedAccount(t, store, engine.hasher, "alice@school.test", "Old!pass123")

	if err := engine.RequestPasswordReset(ctx, "alice@school.test"); err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	resetToken := notifier.waitFor(t, TemplatePasswordReset).data["token"]

	// Simulate the stored window elapsing ahead of the signed expiry.
	store.mutate(a.ID, func(a *Account) { a.ResetTokenExpires = time.Now().Add(-time.Minute) })

	if err := engine.ResetPassword(ctx, resetToken, "New!pass456"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expired window: got %v, want ErrTokenInvalid", err)
	}
}

func TestPasswordResetClearsLockout(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	engine := newTestEngine(t, store)
	notifier := newRecordingNotifier()
	engine.notifier = notifier
	a := seedAccount(t, store, engine.hasher, "alice@school.test", "Old!pass123")

	for i := 0; i < engine.config.Lockout.Threshold; i++ {
		_, _ = engine.Login(ctx, "alice@school.test", "wrong-pass-1!A")
	}
	if got := store.get(a.ID); !got.Locked(time.Now()) {
		t.Fatal("expected account locked")
	}

	if err := engine.RequestPasswordReset(ctx, "alice@school.test"); err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	resetToken := notifier.waitFor(t, TemplatePasswordReset).data["token"]
	if err := engine.ResetPassword(ctx, resetToken, "New!pass456"); err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}

	if _, err := engine.Login(ctx, "alice@school.test", "New!pass456"); err != nil {
		t.Fatalf("login after reset failed: %v", err)
	}
}
