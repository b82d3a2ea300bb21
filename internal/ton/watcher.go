package ton

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/crowdfund-escrow/backend/internal/config"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/liteclient"
	"github.com/xssnick/tonutils-go/tlb"
	tonapi "github.com/xssnick/tonutils-go/ton"
	"go.uber.org/zap"
)

const (
	txBatchSize = 100

	// DepositMemoPrefix marks hot wallet transfers that fund a custody account:
	// "deposit:<raw or friendly address>".
	DepositMemoPrefix = "deposit:"
)

// IncomingTransfer is a plain-value transfer that landed on the watched wallet.
type IncomingTransfer struct {
	LT      uint64
	Hash    []byte
	From    string
	Amount  uint64 // nanoTON
	Comment string
}

// Watcher lists incoming transfers of one wallet through a lite server pool.
type Watcher struct {
	api  tonapi.APIClientWrapped
	addr *address.Address
	log  *zap.Logger
}

// Connect establishes a connection to the TON network.
// If LITE_SERVER_HOST + LITE_SERVER_KEY are set, connects to a specific lite server.
// Otherwise, auto-discovers lite servers from the global TON config based on TON_NETWORK.
func Connect(ctx context.Context, cfg *config.Config, wallet *address.Address, log *zap.Logger) (*Watcher, error) {
	client := liteclient.NewConnectionPool()

	if cfg.LiteServerHost != "" && cfg.LiteServerKey != "" {
		addr := fmt.Sprintf("%s:%d", cfg.LiteServerHost, cfg.LiteServerPort)
		log.Info("connecting to lite server", zap.String("addr", addr))
		if err := client.AddConnection(ctx, addr, cfg.LiteServerKey); err != nil {
			return nil, fmt.Errorf("connect to lite server %s: %w", addr, err)
		}
	} else {
		configURL := "https://ton.org/testnet-global.config.json"
		if strings.EqualFold(cfg.TONNetwork, "mainnet") {
			configURL = "https://ton.org/global.config.json"
		}
		log.Info("connecting via global config", zap.String("url", configURL), zap.String("network", cfg.TONNetwork))
		if err := client.AddConnectionsFromConfigUrl(ctx, configURL); err != nil {
			return nil, fmt.Errorf("connect via config %s: %w", configURL, err)
		}
	}

	proofPolicy := tonapi.ProofCheckPolicyFast
	if strings.EqualFold(cfg.TONNetwork, "mainnet") {
		proofPolicy = tonapi.ProofCheckPolicySecure
	}

	return &Watcher{
		api:  tonapi.NewAPIClient(client, proofPolicy).WithRetry(),
		addr: wallet,
		log:  log,
	}, nil
}

// Head returns the wallet's last transaction. A wallet that is not active yet
// reports lt 0.
func (w *Watcher) Head(ctx context.Context) (uint64, []byte, error) {
	account, err := w.account(ctx)
	if err != nil {
		return 0, nil, err
	}
	if account == nil || !account.IsActive {
		return 0, nil, nil
	}
	return account.LastTxLT, account.LastTxHash, nil
}

// Since returns incoming transfers with LT > cursorLT in chronological order,
// plus the new head to store as cursor.
func (w *Watcher) Since(ctx context.Context, cursorLT uint64) ([]IncomingTransfer, uint64, []byte, error) {
	account, err := w.account(ctx)
	if err != nil {
		return nil, 0, nil, err
	}
	if account == nil || !account.IsActive || account.LastTxLT <= cursorLT {
		return nil, cursorLT, nil, nil
	}

	txs, err := w.fetchNewTransactions(ctx, account, cursorLT)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("fetch transactions: %w", err)
	}

	var out []IncomingTransfer
	for _, tx := range txs {
		if in, ok := incoming(tx); ok {
			out = append(out, in)
		}
	}
	return out, account.LastTxLT, account.LastTxHash, nil
}

func (w *Watcher) account(ctx context.Context) (*tlb.Account, error) {
	block, err := w.api.CurrentMasterchainInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("get master block: %w", err)
	}
	account, err := w.api.GetAccount(ctx, block, w.addr)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return account, nil
}

// ListTransactions returns results oldest-first; we paginate backwards
// until we reach the cursor, then return in chronological order.
func (w *Watcher) fetchNewTransactions(ctx context.Context, account *tlb.Account, cursorLT uint64) ([]*tlb.Transaction, error) {
	var all []*tlb.Transaction

	lt := account.LastTxLT
	hash := account.LastTxHash

	for {
		txs, err := w.api.ListTransactions(ctx, w.addr, uint32(txBatchSize), lt, hash)
		if err != nil {
			return nil, fmt.Errorf("list transactions (lt=%d): %w", lt, err)
		}
		if len(txs) == 0 {
			break
		}

		reachedCursor := false
		for _, tx := range txs {
			if tx.LT <= cursorLT {
				reachedCursor = true
				continue
			}
			all = append(all, tx)
		}

		if reachedCursor || len(txs) < txBatchSize {
			break
		}

		oldest := txs[0]
		if oldest.PrevTxLT == 0 {
			break
		}
		lt = oldest.PrevTxLT
		hash = oldest.PrevTxHash
	}

	sort.Slice(all, func(i, j int) bool { return all[i].LT < all[j].LT })
	return all, nil
}

func incoming(tx *tlb.Transaction) (IncomingTransfer, bool) {
	if tx.IO.In == nil {
		return IncomingTransfer{}, false
	}
	msg, ok := tx.IO.In.Msg.(*tlb.InternalMessage)
	if !ok || msg == nil || msg.Bounced {
		return IncomingTransfer{}, false
	}
	nano := msg.Amount.Nano()
	if nano.Sign() <= 0 || !nano.IsUint64() {
		return IncomingTransfer{}, false
	}

	return IncomingTransfer{
		LT:      tx.LT,
		Hash:    tx.Hash,
		From:    msg.SrcAddr.StringRaw(),
		Amount:  nano.Uint64(),
		Comment: extractComment(msg),
	}, true
}

// extractComment parses a text comment from an InternalMessage body.
// TON text comments have opcode 0x00000000 followed by UTF-8 text.
func extractComment(msg *tlb.InternalMessage) string {
	if msg.Body == nil {
		return ""
	}

	slice := msg.Body.BeginParse()
	if slice.BitsLeft() < 32 {
		return ""
	}
	op, err := slice.LoadUInt(32)
	if err != nil || op != 0 {
		return ""
	}

	remaining := slice.BitsLeft()
	if remaining < 8 {
		return ""
	}
	data, err := slice.LoadSlice(remaining)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// ParseDepositMemo extracts the custody account a deposit comment names.
func ParseDepositMemo(comment string) (string, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(comment), DepositMemoPrefix)
	if !ok {
		return "", fmt.Errorf("comment %q is not a deposit memo", comment)
	}
	return NormalizeAccount(rest)
}
