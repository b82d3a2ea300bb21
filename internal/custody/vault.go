package custody

import (
	"crypto/hmac"
	"crypto/sha256"
	"errors"

	"github.com/google/uuid"
	"github.com/xssnick/tonutils-go/address"
)

const (
	vaultSeed     = "vault"
	authoritySeed = "vault-authority"
)

var (
	ErrInvalidAuthority  = errors.New("invalid vault authority")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("transfer amount must be positive")
)

// VaultAuthority is the capability to spend from one campaign vault. Its fields
// are unexported: the only way to obtain a valid value is Deriver.Authority.
type VaultAuthority struct {
	campaignID uuid.UUID
	vault      string
	mac        []byte
}

func (a VaultAuthority) Vault() string {
	return a.vault
}

// Deriver computes vault accounts and their spending authorities purely from
// the campaign id. No private key backs a vault; the authority is an HMAC under
// a server-held key, so it cannot be produced outside this process.
type Deriver struct {
	key       []byte
	workchain byte
}

func NewDeriver(key string, workchain int) *Deriver {
	return &Deriver{key: []byte(key), workchain: byte(int8(workchain))}
}

// VaultAddress returns the TON-form address of the campaign vault:
// the account hash is sha256("vault" || campaign id).
func (d *Deriver) VaultAddress(campaignID uuid.UUID) *address.Address {
	h := sha256.New()
	h.Write([]byte(vaultSeed))
	h.Write(campaignID[:])
	return address.NewAddress(0, d.workchain, h.Sum(nil))
}

// VaultFor returns the raw account id ("wc:hex") of the campaign vault.
func (d *Deriver) VaultFor(campaignID uuid.UUID) string {
	return d.VaultAddress(campaignID).StringRaw()
}

func (d *Deriver) Authority(campaignID uuid.UUID) VaultAuthority {
	return VaultAuthority{
		campaignID: campaignID,
		vault:      d.VaultFor(campaignID),
		mac:        d.mac(campaignID),
	}
}

// Check verifies that auth was minted by this deriver for vault.
func (d *Deriver) Check(auth VaultAuthority, vault string) error {
	if auth.mac == nil || auth.vault != vault {
		return ErrInvalidAuthority
	}
	if d.VaultFor(auth.campaignID) != vault {
		return ErrInvalidAuthority
	}
	if !hmac.Equal(auth.mac, d.mac(auth.campaignID)) {
		return ErrInvalidAuthority
	}
	return nil
}

func (d *Deriver) mac(campaignID uuid.UUID) []byte {
	m := hmac.New(sha256.New, d.key)
	m.Write([]byte(authoritySeed))
	m.Write(campaignID[:])
	return m.Sum(nil)
}
