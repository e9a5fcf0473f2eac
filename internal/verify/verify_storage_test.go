package verify

import (
	"context"
	"testing"

	"authwatch/internal/storagestate"
)

func storageConfig(entries ...storagestate.Entry) Config {
	return Config{StorageState: &storagestate.State{
		Origins: []storagestate.Origin{{Origin: "http://localhost:3000", LocalStorage: entries}},
	}}
}

func TestStorageVerifierSubstantialToken(t *testing.T) {
	cfg := storageConfig(storagestate.Entry{Name: "accessToken", Value: "gho_1234567890abcdef"})
	result := StorageVerifier{}.Verify(context.Background(), cookieClient(t), cfg)
	if !result.IsAuthenticated {
		t.Fatal("expected authenticated")
	}
	if result.Confidence != 0.6 {
		t.Fatalf("expected confidence 0.6, got %.2f", result.Confidence)
	}
}

func TestStorageVerifierShortToken(t *testing.T) {
	cfg := storageConfig(storagestate.Entry{Name: "auth_token", Value: "abc"})
	result := StorageVerifier{}.Verify(context.Background(), cookieClient(t), cfg)
	if !result.IsAuthenticated {
		t.Fatal("short token still leans authenticated")
	}
	if result.Confidence != 0.2 {
		t.Fatalf("expected confidence 0.2, got %.2f", result.Confidence)
	}
}

func TestStorageVerifierNoTokens(t *testing.T) {
	cfg := storageConfig(storagestate.Entry{Name: "theme", Value: "dark"})
	result := StorageVerifier{}.Verify(context.Background(), cookieClient(t), cfg)
	if result.IsAuthenticated {
		t.Fatal("expected unauthenticated")
	}
	if result.Confidence != 0.4 {
		t.Fatalf("expected confidence 0.4, got %.2f", result.Confidence)
	}
}

func TestStorageVerifierNilState(t *testing.T) {
	result := StorageVerifier{}.Verify(context.Background(), cookieClient(t), Config{})
	if result.IsAuthenticated {
		t.Fatal("expected unauthenticated with no storage state")
	}
	if result.Confidence != 0.4 {
		t.Fatalf("expected confidence 0.4, got %.2f", result.Confidence)
	}
}

func TestStorageVerifierSubstringHeuristic(t *testing.T) {
	cfg := storageConfig(storagestate.Entry{Name: "my-app.oauth-state", Value: "0123456789abcdef"})
	result := StorageVerifier{}.Verify(context.Background(), cookieClient(t), cfg)
	if !result.IsAuthenticated {
		t.Fatal("expected substring heuristic to match auth-like keys")
	}
	if result.Confidence != 0.6 {
		t.Fatalf("expected confidence 0.6, got %.2f", result.Confidence)
	}
}
