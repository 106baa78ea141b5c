package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	env := map[string]string{
		"API_FIRESTORE_PROJECT_ID": "ccs-dev",
	}

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Firestore.ProjectID != "ccs-dev" {
		t.Errorf("unexpected firestore project: %s", cfg.Firestore.ProjectID)
	}
	if cfg.Email.FromAddress != defaultEmailFrom {
		t.Errorf("expected default from address, got %s", cfg.Email.FromAddress)
	}
	if len(cfg.Email.OwnerRecipients) != 0 {
		t.Errorf("expected no owner recipients, got %v", cfg.Email.OwnerRecipients)
	}
	if cfg.Checkout.SuccessURL != defaultSuccessURL {
		t.Errorf("expected default success url, got %s", cfg.Checkout.SuccessURL)
	}
	if cfg.Checkout.AllowedOrigin != defaultAllowedOrigin {
		t.Errorf("expected default allowed origin, got %s", cfg.Checkout.AllowedOrigin)
	}
	if cfg.Events.Topic != "" {
		t.Errorf("expected events disabled by default, got %s", cfg.Events.Topic)
	}
	if cfg.RateLimits.PublicPerWindow != defaultRateLimitPerWindow {
		t.Errorf("unexpected default rate limit: %d", cfg.RateLimits.PublicPerWindow)
	}
	if cfg.RateLimits.Window != defaultRateLimitWindow {
		t.Errorf("unexpected default rate limit window: %s", cfg.RateLimits.Window)
	}
	if cfg.Security.Environment != "local" {
		t.Errorf("expected default security environment local, got %s", cfg.Security.Environment)
	}
}

func TestLoadWithOverridesAndSecrets(t *testing.T) {
	env := map[string]string{
		"API_SERVER_PORT":                  "9090",
		"API_SERVER_READ_TIMEOUT":          "20s",
		"API_SERVER_IDLE_TIMEOUT":          "2m",
		"API_FIRESTORE_PROJECT_ID":         "ccs-prod",
		"API_STRIPE_API_KEY":               "secret://stripe/api",
		"API_STRIPE_WEBHOOK_SECRET":        "secret://stripe/webhook",
		"API_EMAIL_RESEND_API_KEY":         "secret://resend/api",
		"API_EMAIL_FROM":                   "Soap Shop <hello@example.com>",
		"API_EMAIL_OWNER_RECIPIENTS":       "owner@example.com, packing@example.com",
		"API_CHECKOUT_SUCCESS_URL":         "https://shop.example.com/thanks?session_id={CHECKOUT_SESSION_ID}",
		"API_CHECKOUT_CANCEL_URL":          "https://shop.example.com/cart",
		"API_CHECKOUT_ALLOWED_ORIGIN":      "https://shop.example.com",
		"API_ORDERS_CONFIRMATION_SALT":     "secret://orders/salt",
		"API_ADMIN_TOKEN":                  "secret://admin/token",
		"API_EVENTS_TOPIC":                 "order-events",
		"API_RATELIMIT_PUBLIC_PER_WINDOW":  "10",
		"API_RATELIMIT_WINDOW":             "30s",
		"API_SECURITY_ENVIRONMENT":         "prod",
	}

	secrets := map[string]string{
		"secret://stripe/api":     "stripe-key",
		"secret://stripe/webhook": "stripe-webhook",
		"secret://resend/api":     "resend-key",
		"secret://orders/salt":    "pepper",
		"secret://admin/token":    "admin-token",
	}

	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if v, ok := secrets[ref]; ok {
			return v, nil
		}
		return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
	})

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""), WithSecretResolver(resolver))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Server.IdleTimeout != 2*time.Minute {
		t.Errorf("unexpected idle timeout: %s", cfg.Server.IdleTimeout)
	}
	if cfg.Stripe.APIKey != "stripe-key" {
		t.Errorf("expected resolved stripe api key, got %s", cfg.Stripe.APIKey)
	}
	if cfg.Stripe.WebhookSecret != "stripe-webhook" {
		t.Errorf("expected resolved webhook secret, got %s", cfg.Stripe.WebhookSecret)
	}
	if cfg.Email.ResendAPIKey != "resend-key" {
		t.Errorf("expected resolved resend key, got %s", cfg.Email.ResendAPIKey)
	}
	if len(cfg.Email.OwnerRecipients) != 2 || cfg.Email.OwnerRecipients[1] != "packing@example.com" {
		t.Fatalf("unexpected owner recipients %v", cfg.Email.OwnerRecipients)
	}
	if cfg.Orders.ConfirmationSalt != "pepper" {
		t.Errorf("expected resolved confirmation salt, got %s", cfg.Orders.ConfirmationSalt)
	}
	if cfg.Admin.Token != "admin-token" {
		t.Errorf("expected resolved admin token, got %s", cfg.Admin.Token)
	}
	if cfg.Events.Topic != "order-events" {
		t.Errorf("unexpected events topic %s", cfg.Events.Topic)
	}
	if cfg.RateLimits.PublicPerWindow != 10 {
		t.Errorf("unexpected rate limit %d", cfg.RateLimits.PublicPerWindow)
	}
	if cfg.RateLimits.Window != 30*time.Second {
		t.Errorf("unexpected rate limit window %s", cfg.RateLimits.Window)
	}
	if cfg.Security.Environment != "prod" {
		t.Errorf("expected security environment prod, got %s", cfg.Security.Environment)
	}
}

func TestLoadDotEnvFallback(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "API_SERVER_PORT=7070\nAPI_FIRESTORE_PROJECT_ID=ccs-dot\n"
	if err := os.WriteFile(envPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write dotenv file: %v", err)
	}

	cfg, err := Load(context.Background(), WithEnvFile(envPath), WithoutSystemEnv())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "7070" {
		t.Errorf("expected port from dotenv 7070, got %s", cfg.Server.Port)
	}
	if cfg.Firestore.ProjectID != "ccs-dot" {
		t.Errorf("expected firestore project from dotenv, got %s", cfg.Firestore.ProjectID)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	_, err := Load(context.Background(), WithEnvMap(map[string]string{}), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	if _, ok := err.(*ValidationError); !ok {
		t.Fatalf("expected ValidationError, got %T", err)
	}
}

func TestLoadSecretResolverError(t *testing.T) {
	env := map[string]string{
		"API_FIRESTORE_PROJECT_ID": "ccs-dev",
		"API_STRIPE_API_KEY":       "secret://missing",
	}

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected secret resolution error, got nil")
	}
	var secretErr *SecretError
	if !errors.As(err, &secretErr) {
		t.Fatalf("expected SecretError, got %T", err)
	}
	if secretErr.Ref != "secret://missing" {
		t.Errorf("unexpected secret ref %s", secretErr.Ref)
	}
}

func TestEnvironmentValuesMergesSources(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "API_FIRESTORE_PROJECT_ID=dot-project\nAPI_SECRET_FALLBACK_FILE=.dot.local\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("failed writing env file: %v", err)
	}

	t.Setenv("API_FIRESTORE_PROJECT_ID", "os-project")
	t.Setenv("API_SECRET_PROJECT_IDS", "prod=project-prod")

	overrides := map[string]string{
		"API_FIRESTORE_PROJECT_ID": "override-project",
		"API_ADMIN_TOKEN":          "override-token",
	}

	values, err := EnvironmentValues(WithEnvFile(envPath), WithEnvMap(overrides))
	if err != nil {
		t.Fatalf("EnvironmentValues returned error: %v", err)
	}

	if got := values["API_FIRESTORE_PROJECT_ID"]; got != "override-project" {
		t.Fatalf("expected override project, got %s", got)
	}
	if got := values["API_SECRET_FALLBACK_FILE"]; got != ".dot.local" {
		t.Fatalf("expected dotenv fallback file, got %s", got)
	}
	if got := values["API_SECRET_PROJECT_IDS"]; got != "prod=project-prod" {
		t.Fatalf("expected system env project map, got %s", got)
	}
	if got := values["API_ADMIN_TOKEN"]; got != "override-token" {
		t.Fatalf("expected override admin token, got %s", got)
	}
}

func TestLoadMissingRequiredSecrets(t *testing.T) {
	env := map[string]string{
		"API_FIRESTORE_PROJECT_ID": "ccs-dev",
	}

	_, err := Load(context.Background(),
		WithEnvMap(env),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithRequiredSecrets("Stripe.WebhookSecret"),
	)
	if err == nil {
		t.Fatal("expected missing secrets error, got nil")
	}
	var missing *MissingSecretsError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingSecretsError, got %T", err)
	}
	expectedRedacted := redactSecretName("Stripe.WebhookSecret")
	if got := missing.RedactedNames(); len(got) != 1 || got[0] != expectedRedacted {
		t.Fatalf("unexpected redacted names %v", got)
	}
}

func TestLoadMissingRequiredSecretsPanic(t *testing.T) {
	env := map[string]string{
		"API_FIRESTORE_PROJECT_ID": "ccs-dev",
	}

	defer func() {
		rec := recover()
		if rec == nil {
			t.Fatal("expected panic when required secrets missing")
		}
		missing, ok := rec.(*MissingSecretsError)
		if !ok {
			t.Fatalf("expected MissingSecretsError panic, got %T", rec)
		}
		if len(missing.Names()) != 1 || missing.Names()[0] != "Stripe.WebhookSecret" {
			t.Fatalf("unexpected missing secrets %v", missing.Names())
		}
	}()

	Load(context.Background(),
		WithEnvMap(env),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithRequiredSecrets("Stripe.WebhookSecret"),
		WithPanicOnMissingSecrets(),
	)
}

func TestLoadSupportsLegacySecretScheme(t *testing.T) {
	env := map[string]string{
		"API_FIRESTORE_PROJECT_ID":  "ccs-dev",
		"API_STRIPE_WEBHOOK_SECRET": "sm://stripe/webhook",
	}

	secrets := map[string]string{
		"secret://stripe/webhook": "legacy-secret",
	}

	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if v, ok := secrets[ref]; ok {
			return v, nil
		}
		return "", &SecretError{Ref: ref, Err: errors.New("not found")}
	})

	cfg, err := Load(context.Background(),
		WithEnvMap(env),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithSecretResolver(resolver),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Stripe.WebhookSecret != "legacy-secret" {
		t.Fatalf("expected legacy secret, got %s", cfg.Stripe.WebhookSecret)
	}
}
