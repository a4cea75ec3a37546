package twiliowhatsapp

import "testing"

func TestNewClient_RequiresCredentials(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("TWILIO_FROM_NUMBER", "")

	if _, err := NewClient(); err == nil {
		t.Fatal("expected error without credentials")
	}
	if _, err := NewClient(WithAccountSID("AC123"), WithAuthToken("tok")); err == nil {
		t.Fatal("expected error without from number")
	}
}

func TestNewClient_FromOptions(t *testing.T) {
	client, err := NewClient(
		WithAccountSID("AC123"),
		WithAuthToken("tok"),
		WithFromWhats("whatsapp:+15550009"),
	)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	if client.fromWhats != "whatsapp:+15550009" {
		t.Errorf("unexpected from number: %s", client.fromWhats)
	}
}
