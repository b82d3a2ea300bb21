package ton

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/tvm/cell"
)

const (
	// TonProofPrefix: фиксированный префикс ton_proof из протокола TON Connect.
	// https://docs.ton.org/develop/dapps/ton-connect/sign#checking-ton_proof-on-server-side
	TonProofPrefix = "ton-proof-item-v2/"

	// TonConnectPrefix: префикс перед SHA256 хешем сообщения.
	TonConnectPrefix = "ton-connect"

	// MaxProofAge: максимальный возраст proof (защита от replay).
	MaxProofAge = 5 * time.Minute
)

var ErrStateInitMismatch = errors.New("state_init does not match address or public key")

// ProofData содержит данные из TON Connect ton_proof.
type ProofData struct {
	Address   string `json:"address"`    // raw: "0:<hex>"
	Network   string `json:"network"`    // "-239" = mainnet, "-3" = testnet
	PublicKey string `json:"public_key"` // hex
	Proof     Proof  `json:"proof"`
	StateInit string `json:"state_init"` // base64 BOC
}

type Proof struct {
	Timestamp int64       `json:"timestamp"`
	Domain    ProofDomain `json:"domain"`
	Payload   string      `json:"payload"`   // наш nonce
	Signature string      `json:"signature"` // base64
}

type ProofDomain struct {
	LengthBytes int    `json:"lengthBytes"`
	Value       string `json:"value"`
}

// Verify checks the whole login proof and returns the canonical raw address
// it proves ownership of.
func (d ProofData) Verify(allowedDomains []string) (string, error) {
	workchain, addrHash, err := ParseRawAddress(d.Address)
	if err != nil {
		return "", err
	}
	pubKey, err := hex.DecodeString(d.PublicKey)
	if err != nil {
		return "", fmt.Errorf("invalid public key hex: %w", err)
	}
	if err := CheckStateInit(d.StateInit, addrHash, pubKey); err != nil {
		return "", err
	}
	if err := VerifyProof(d.PublicKey, addrHash, workchain, d.Proof, allowedDomains); err != nil {
		return "", err
	}
	return address.NewAddress(0, byte(workchain), addrHash).StringRaw(), nil
}

// VerifyProof проверяет TON Proof подпись.
//
// Алгоритм (TON Connect):
// 1. message = "ton-proof-item-v2/" ++ address_workchain(4 bytes) ++ address_hash(32 bytes)
//              ++ domain_len(4 bytes LE) ++ domain ++ timestamp(8 bytes LE) ++ payload
// 2. signature_message = 0xffff ++ "ton-connect" ++ sha256(message)
// 3. Verify Ed25519(public_key, sha256(signature_message), signature)
func VerifyProof(pubKeyHex string, address []byte, workchain int32, proof Proof, allowedDomains []string) error {
	proofTime := time.Unix(proof.Timestamp, 0)
	if time.Since(proofTime) > MaxProofAge {
		return fmt.Errorf("proof expired: %s old", time.Since(proofTime).Round(time.Second))
	}
	if proofTime.After(time.Now().Add(1 * time.Minute)) {
		return fmt.Errorf("proof timestamp is in the future")
	}

	if !isDomainAllowed(proof.Domain.Value, allowedDomains) {
		return fmt.Errorf("domain %q not in allowed list", proof.Domain.Value)
	}

	pubKey, err := hex.DecodeString(pubKeyHex)
	if err != nil {
		return fmt.Errorf("invalid public key hex: %w", err)
	}
	if len(pubKey) != ed25519.PublicKeySize {
		return fmt.Errorf("invalid public key size: %d", len(pubKey))
	}

	sig, err := base64.StdEncoding.DecodeString(proof.Signature)
	if err != nil {
		return fmt.Errorf("invalid signature base64: %w", err)
	}
	if len(sig) != ed25519.SignatureSize {
		return fmt.Errorf("invalid signature size: %d", len(sig))
	}

	if !ed25519.Verify(pubKey, signingHash(address, workchain, proof), sig) {
		return fmt.Errorf("invalid signature")
	}
	return nil
}

// signingHash = sha256(0xffff ++ "ton-connect" ++ sha256(message))
func signingHash(addrHash []byte, workchain int32, proof Proof) []byte {
	message := []byte(TonProofPrefix)
	message = binary.BigEndian.AppendUint32(message, uint32(workchain))
	message = append(message, addrHash...)
	message = binary.LittleEndian.AppendUint32(message, uint32(proof.Domain.LengthBytes))
	message = append(message, proof.Domain.Value...)
	message = binary.LittleEndian.AppendUint64(message, uint64(proof.Timestamp))
	message = append(message, proof.Payload...)

	msgHash := sha256.Sum256(message)

	signatureMessage := []byte{0xff, 0xff}
	signatureMessage = append(signatureMessage, TonConnectPrefix...)
	signatureMessage = append(signatureMessage, msgHash[:]...)

	finalHash := sha256.Sum256(signatureMessage)
	return finalHash[:]
}

// CheckStateInit binds the proof to the wallet: the state_init must hash to
// the address and its data must carry the public key. Wallet v3/v4 data
// starts with seqno(32) and subwallet_id(32), then the key.
func CheckStateInit(stateInitB64 string, addrHash, pubKey []byte) error {
	boc, err := base64.StdEncoding.DecodeString(stateInitB64)
	if err != nil {
		return fmt.Errorf("invalid state_init base64: %w", err)
	}
	root, err := cell.FromBOC(boc)
	if err != nil {
		return fmt.Errorf("invalid state_init boc: %w", err)
	}
	if !bytes.Equal(root.Hash(), addrHash) {
		return ErrStateInitMismatch
	}

	var init tlb.StateInit
	if err := tlb.LoadFromCell(&init, root.BeginParse()); err != nil {
		return fmt.Errorf("parse state_init: %w", err)
	}
	if init.Data == nil {
		return ErrStateInitMismatch
	}

	data := init.Data.BeginParse()
	if _, err := data.LoadUInt(64); err != nil {
		return ErrStateInitMismatch
	}
	key, err := data.LoadSlice(256)
	if err != nil || !bytes.Equal(key, pubKey) {
		return ErrStateInitMismatch
	}
	return nil
}

// ParseRawAddress парсит строку вида "0:abcdef..." в workchain и address hash.
func ParseRawAddress(raw string) (workchain int32, addrHash []byte, err error) {
	wcPart, hashHex, ok := strings.Cut(raw, ":")
	if !ok {
		return 0, nil, fmt.Errorf("invalid raw address format: %s", raw)
	}

	var wc int
	if _, err := fmt.Sscanf(wcPart, "%d", &wc); err != nil || (wc != 0 && wc != -1) {
		return 0, nil, fmt.Errorf("invalid workchain in address: %s", raw)
	}
	addrHash, err = hex.DecodeString(hashHex)
	if err != nil {
		return 0, nil, fmt.Errorf("invalid address hash hex: %w", err)
	}
	if len(addrHash) != 32 {
		return 0, nil, fmt.Errorf("address hash must be 32 bytes, got %d", len(addrHash))
	}

	return int32(wc), addrHash, nil
}

// NormalizeAccount accepts raw ("0:<hex>") or user-friendly addresses and
// returns the raw lowercase form used as the account id everywhere.
func NormalizeAccount(s string) (string, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ":") {
		wc, hash, err := ParseRawAddress(s)
		if err != nil {
			return "", err
		}
		return address.NewAddress(0, byte(wc), hash).StringRaw(), nil
	}

	addr, err := address.ParseAddr(s)
	if err != nil {
		return "", fmt.Errorf("invalid address %q: %w", s, err)
	}
	return addr.StringRaw(), nil
}

func isDomainAllowed(domain string, allowed []string) bool {
	if len(allowed) == 0 {
		return true // если список пуст, разрешаем всё (dev mode)
	}
	for _, d := range allowed {
		if d == domain {
			return true
		}
	}
	return false
}
