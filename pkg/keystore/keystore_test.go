package keystore

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestEncryptDecryptMnemonic(t *testing.T) {
	mnemonic := "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	password := "secure-password"

	// 1. Encrypt
	keyJSON, err := EncryptMnemonic(mnemonic, password, LightScrypt)
	if err != nil {
		t.Fatalf("Encryption failed: %v", err)
	}

	if keyJSON.Crypto.Cipher != "aes-256-gcm" {
		t.Errorf("Expected cipher aes-256-gcm, got %s", keyJSON.Crypto.Cipher)
	}
	if keyJSON.Kind != KindMnemonic {
		t.Errorf("Expected kind mnemonic, got %s", keyJSON.Kind)
	}

	// 2. Decrypt with correct password
	plaintext, err := DecryptSecret(keyJSON, password)
	if err != nil {
		t.Fatalf("Decryption failed: %v", err)
	}
	if string(plaintext) != mnemonic {
		t.Errorf("Decryption mismatch. Expected %s, got %s", mnemonic, plaintext)
	}

	// 3. Decrypt with wrong password
	if _, err := DecryptSecret(keyJSON, "wrong-password"); !errors.Is(err, ErrDecrypt) {
		t.Errorf("Expected ErrDecrypt with wrong password, got %v", err)
	}
}

func TestKindIsAuthenticated(t *testing.T) {
	keyJSON, err := EncryptSecret(KindAccount, []byte("0123456789abcdef0123456789abcdef"), "pw", LightScrypt)
	if err != nil {
		t.Fatalf("Encryption failed: %v", err)
	}

	// 篡改类型字段，GCM 附加数据校验应失败
	keyJSON.Kind = KindMnemonic
	if _, err := DecryptSecret(keyJSON, "pw"); err == nil {
		t.Error("Expected error after tampering kind, got nil")
	}
}

func TestDirStoreAndFind(t *testing.T) {
	dir, err := NewDir(filepath.Join(t.TempDir(), "keys"))
	if err != nil {
		t.Fatalf("NewDir failed: %v", err)
	}

	account, _ := EncryptSecret(KindAccount, []byte("seed-bytes-0123456789abcdef01234"), "pw", LightScrypt)
	account.Address = "ADDRESS-A"
	if err := dir.Store(account); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	wallet, _ := EncryptMnemonic("test mnemonic", "pw", LightScrypt)
	if err := dir.Store(wallet); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	found, err := dir.FindByAddress("ADDRESS-A")
	if err != nil {
		t.Fatalf("FindByAddress failed: %v", err)
	}
	if found.Id != account.Id {
		t.Errorf("ID mismatch after load")
	}

	loaded, err := dir.Load(KindMnemonic, wallet.Id)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	decrypted, err := DecryptSecret(loaded, "pw")
	if err != nil {
		t.Fatalf("Decrypt loaded failed: %v", err)
	}
	if string(decrypted) != "test mnemonic" {
		t.Errorf("Content mismatch")
	}

	if _, err := dir.FindByAddress("ADDRESS-B"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if _, err := dir.Load(KindMnemonic, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
