package auth

import (
	"net/http"
	"strings"
	"testing"
)

func TestHashSecret(t *testing.T) {
	// sha1("abc")
	want := "a9993e364706816aba3e25717850c26c9cd0d89d"
	if got := HashSecret("abc"); got != want {
		t.Errorf("HashSecret(abc) = %q, want %q", got, want)
	}
}

func TestNewCredentials(t *testing.T) {
	tests := []struct {
		name       string
		secret     string
		wantHashed string
		wantErr    string
	}{
		{
			name:       "plain secret",
			secret:     "averylongsecret",
			wantHashed: HashSecret("averylongsecret"),
		},
		{
			name:       "surrounding whitespace",
			secret:     "  averylongsecret\n",
			wantHashed: HashSecret("averylongsecret"),
		},
		{
			name:       "already hashed",
			secret:     "A9993E364706816ABA3E25717850C26C9CD0D89D",
			wantHashed: "a9993e364706816aba3e25717850c26c9cd0d89d",
		},
		{
			name:    "empty",
			secret:  "",
			wantErr: "API secret is required",
		},
		{
			name:    "too short",
			secret:  "short",
			wantErr: "API secret must be at least 12 characters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			creds, err := NewCredentials(tt.secret)
			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("NewCredentials() expected error %q, got nil", tt.wantErr)
				}
				if err.Error() != tt.wantErr {
					t.Errorf("NewCredentials() error = %q, want %q", err.Error(), tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewCredentials() unexpected error: %v", err)
			}
			if creds.Hashed() != tt.wantHashed {
				t.Errorf("Hashed() = %q, want %q", creds.Hashed(), tt.wantHashed)
			}
		})
	}
}

func TestCredentials_SignRequest(t *testing.T) {
	creds, err := NewCredentials("averylongsecret")
	if err != nil {
		t.Fatalf("NewCredentials failed: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, "https://ns.example.com/api/v1/entries", nil)
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	creds.SignRequest(req)

	got := req.Header.Get(HeaderAPISecret)
	if got != HashSecret("averylongsecret") {
		t.Errorf("api-secret = %q, want %q", got, HashSecret("averylongsecret"))
	}
	if strings.Contains(got, "averylongsecret") {
		t.Error("api-secret header leaks the plain secret")
	}
}
