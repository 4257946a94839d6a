package credential

import (
	"path/filepath"
	"testing"
	"time"
)

func ftpCred(org, country string) *Credential {
	return &Credential{
		OrganizationID: org,
		Country:        country,
		Type:           ChannelFTP,
		FTP:            &FTPCredential{TraderID: "1234", Username: "u", Password: "p"},
	}
}

func TestValidate(t *testing.T) {
	c := ftpCred("org1", "BB")
	if err := c.Validate(); err != nil {
		t.Fatalf("valid credential rejected: %v", err)
	}

	c.FTP.Password = ""
	if err := c.Validate(); err == nil {
		t.Error("expected error for missing password")
	}

	w := &Credential{OrganizationID: "org1", Country: "BB", Type: ChannelWeb}
	if err := w.Validate(); err == nil {
		t.Error("expected error for missing web section")
	}
}

func TestRegistry_Uniqueness(t *testing.T) {
	r := NewRegistry()
	if err := r.Add(ftpCred("org1", "BB")); err != nil {
		t.Fatalf("first add failed: %v", err)
	}
	if err := r.Add(ftpCred("org1", "BB")); err == nil {
		t.Error("duplicate scope accepted")
	}
	// Different country is a different scope.
	if err := r.Add(ftpCred("org1", "TT")); err != nil {
		t.Errorf("distinct scope rejected: %v", err)
	}
	// Web credentials with distinct targets coexist.
	w1 := &Credential{OrganizationID: "org1", Country: "BB", Type: ChannelWeb,
		Web: &WebCredential{Target: "portal-a", Username: "u", Password: "p"}}
	w2 := &Credential{OrganizationID: "org1", Country: "BB", Type: ChannelWeb,
		Web: &WebCredential{Target: "portal-b", Username: "u", Password: "p"}}
	if err := r.Add(w1); err != nil {
		t.Fatalf("web add failed: %v", err)
	}
	if err := r.Add(w2); err != nil {
		t.Errorf("distinct web target rejected: %v", err)
	}

	got := r.Lookup("org1", "BB", ChannelWeb, "portal-a")
	if got != w1 {
		t.Error("lookup returned wrong credential")
	}
}

func TestMarkTested(t *testing.T) {
	c := ftpCred("org1", "BB")
	at := time.Now()
	c.MarkTested(at)
	if !c.LastTestedAt.Equal(at) {
		t.Error("LastTestedAt not recorded")
	}
	if c.FTP.Password != "p" {
		t.Error("test mutated credential content")
	}
}

func TestRegistry_SaveRoundTrip(t *testing.T) {
	r := NewRegistry()
	c := ftpCred("org1", "BB")
	if err := r.Add(c); err != nil {
		t.Fatal(err)
	}
	if err := r.Add(ftpCred("org2", "JM")); err != nil {
		t.Fatal(err)
	}

	tested := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	used := time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)
	c.MarkTested(tested)
	c.MarkUsed(used)

	path := filepath.Join(t.TempDir(), "credentials.yaml")
	if err := r.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	got := loaded.Lookup("org1", "BB", ChannelFTP, "")
	if got == nil {
		t.Fatal("credential lost in round trip")
	}
	if !got.LastTestedAt.Equal(tested) {
		t.Errorf("LastTestedAt = %v, want %v", got.LastTestedAt, tested)
	}
	if !got.LastUsedAt.Equal(used) {
		t.Errorf("LastUsedAt = %v, want %v", got.LastUsedAt, used)
	}
	if got.FTP.Password != "p" {
		t.Error("credential content changed in round trip")
	}
	if loaded.Lookup("org2", "JM", ChannelFTP, "") == nil {
		t.Error("second credential lost in round trip")
	}
}
