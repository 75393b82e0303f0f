package auth

import "testing"

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := HashPassword("Abcdef12")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if hash == "Abcdef12" {
		t.Fatal("hash must not equal plaintext")
	}

	ok, err := CheckPassword("Abcdef12", hash)
	if err != nil {
		t.Fatalf("CheckPassword() error = %v", err)
	}
	if !ok {
		t.Error("correct password should verify")
	}

	ok, err = CheckPassword("wrong-password", hash)
	if err != nil {
		t.Fatalf("CheckPassword() error = %v", err)
	}
	if ok {
		t.Error("wrong password must not verify")
	}
}

func TestHashPassword_SaltsDiffer(t *testing.T) {
	h1, err := HashPassword("Abcdef12")
	if err != nil {
		t.Fatal(err)
	}
	h2, err := HashPassword("Abcdef12")
	if err != nil {
		t.Fatal(err)
	}
	if h1 == h2 {
		t.Error("two hashes of the same password should differ (random salt)")
	}
}

func TestCheckPassword_MalformedHash(t *testing.T) {
	_, err := CheckPassword("Abcdef12", "not-a-bcrypt-hash")
	if err == nil {
		t.Error("malformed hash must surface an error, not a silent mismatch")
	}
}

func TestSecurityAnswer_Normalization(t *testing.T) {
	hash, err := HashSecurityAnswer("  Fluffy ")
	if err != nil {
		t.Fatalf("HashSecurityAnswer() error = %v", err)
	}

	tests := []struct {
		name   string
		answer string
		want   bool
	}{
		{name: "exact", answer: "  Fluffy ", want: true},
		{name: "lowercased", answer: "fluffy", want: true},
		{name: "uppercase with padding", answer: "FLUFFY  ", want: true},
		{name: "different answer", answer: "rex", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CheckSecurityAnswer(tt.answer, hash)
			if err != nil {
				t.Fatalf("CheckSecurityAnswer() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("CheckSecurityAnswer(%q) = %v, want %v", tt.answer, got, tt.want)
			}
		})
	}
}
