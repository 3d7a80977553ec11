// Package bridge ties the session registry, the protocol parser and the
// per-account stores together: it registers the push handlers, runs the
// periodic refresh loop and fans applied updates out to the configured
// sinks (Kafka update feed, Redis snapshot cache). Every sink is optional;
// the protocol core runs without any.
package bridge

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/CodeSlinger0110/Dashboard-DasTrader-BE/pkg/dastrader"
	"github.com/CodeSlinger0110/Dashboard-DasTrader-BE/pkg/dastrader/model"
	"github.com/CodeSlinger0110/Dashboard-DasTrader-BE/pkg/dastrader/parser"
	"github.com/CodeSlinger0110/Dashboard-DasTrader-BE/pkg/dastrader/store"
	kafkawrapper "github.com/CodeSlinger0110/Dashboard-DasTrader-BE/pkg/kafka_wrapper"
	"go.uber.org/zap"
)

type Config struct {
	UpdateTopic     string
	RefreshInterval time.Duration
}

func (c *Config) defaults() {
	if c.RefreshInterval == 0 {
		c.RefreshInterval = 5 * time.Second
	}
	if c.UpdateTopic == "" {
		c.UpdateTopic = "dastrader.updates"
	}
}

type Bridge struct {
	cfg       Config
	registry  *dastrader.Registry
	producer  *kafkawrapper.Producer // nil when no update feed is configured
	snapshots *SnapshotCache         // nil when no snapshot cache is configured
	log       *zap.SugaredLogger

	mu     sync.RWMutex
	stores map[string]*store.Store

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func New(cfg Config, registry *dastrader.Registry, producer *kafkawrapper.Producer, snapshots *SnapshotCache) *Bridge {
	cfg.defaults()
	return &Bridge{
		cfg:       cfg,
		registry:  registry,
		producer:  producer,
		snapshots: snapshots,
		log:       zap.S().With("component", "bridge"),
		stores:    make(map[string]*store.Store),
		stopCh:    make(chan struct{}),
	}
}

// Register creates the session and store for an account and wires the five
// push handlers. It does not connect.
func (b *Bridge) Register(accountID string, cred model.Credential) *dastrader.Session {
	sess := b.registry.Add(accountID, cred)
	st := store.New(accountID)
	b.mu.Lock()
	b.stores[accountID] = st
	b.mu.Unlock()

	sess.RegisterHandler(dastrader.HandlerPosition, b.onPositionLine)
	sess.RegisterHandler(dastrader.HandlerOrder, b.onOrderLine)
	sess.RegisterHandler(dastrader.HandlerTrade, b.onTradeLine)
	sess.RegisterHandler(dastrader.HandlerAccount, b.onAccountLine)
	sess.RegisterHandler(dastrader.HandlerQuote, b.onQuoteLine)
	return sess
}

func (b *Bridge) Store(accountID string) (*store.Store, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	st, ok := b.stores[accountID]
	return st, ok
}

// ConnectAll connects every registered account under the registry's
// aggregate deadline.
func (b *Bridge) ConnectAll(ctx context.Context) map[string]bool {
	return b.registry.ConnectAll(ctx)
}

// Start launches the periodic refresh loop.
func (b *Bridge) Start(ctx context.Context) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ticker := time.NewTicker(b.cfg.RefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-b.stopCh:
				return
			case <-ticker.C:
				b.refreshAll(ctx)
			}
		}
	}()
}

// Close stops the refresh loop and disconnects every session.
func (b *Bridge) Close() {
	b.stopOnce.Do(func() { close(b.stopCh) })
	b.wg.Wait()
	b.registry.DisconnectAll()
	if b.producer != nil {
		_ = b.producer.Close(context.Background())
	}
}

func (b *Bridge) refreshAll(ctx context.Context) {
	for accountID, sess := range b.registry.All() {
		if !sess.Connected() {
			continue
		}
		if err := b.RefreshAccount(ctx, accountID); err != nil {
			b.log.Warnw("account refresh failed", "account_id", accountID, "error", err)
		}
	}
}

// RefreshAccount pulls positions, orders, trades, account info and buying
// power for one account and applies them through the same store as push
// updates. A reply that failed marker validation is discarded, never parsed
// into state.
func (b *Bridge) RefreshAccount(ctx context.Context, accountID string) error {
	sess, ok := b.registry.Get(accountID)
	if !ok {
		return dastrader.ErrNotConnected
	}
	st, ok := b.Store(accountID)
	if !ok {
		return dastrader.ErrNotConnected
	}

	if resp, err := b.command(ctx, sess, "GET POSITIONS"); err == nil && resp != "" {
		positions := parser.ParsePositions(resp)
		st.ReplacePositions(positions)
		for i := range positions {
			b.publish(ctx, &model.UpdateEvent{
				AccountID: accountID, Kind: model.UpdateKindPosition,
				Time: time.Now(), Position: &positions[i],
			})
		}
	} else if err != nil {
		return err
	}

	if resp, err := b.command(ctx, sess, "GET ORDERS"); err == nil && resp != "" {
		orders := parser.ParseOrders(resp)
		st.ReplaceOrders(orders)
		for i := range orders {
			b.publish(ctx, &model.UpdateEvent{
				AccountID: accountID, Kind: model.UpdateKindOrder,
				Time: time.Now(), Order: &orders[i],
			})
		}
	} else if err != nil {
		return err
	}

	if resp, err := b.command(ctx, sess, "GET TRADES"); err == nil && resp != "" {
		trades := parser.ParseTrades(resp)
		st.ApplyTrades(trades)
		for i := range trades {
			b.publish(ctx, &model.UpdateEvent{
				AccountID: accountID, Kind: model.UpdateKindTrade,
				Time: time.Now(), Trade: &trades[i],
			})
		}
	} else if err != nil {
		return err
	}

	if resp, err := b.command(ctx, sess, "GET AccountInfo"); err == nil && resp != "" {
		if info := parser.ParseAccountInfo(resp); info != nil {
			st.SetAccountInfo(*info)
			b.publish(ctx, &model.UpdateEvent{
				AccountID: accountID, Kind: model.UpdateKindAccountInfo,
				Time: time.Now(), AccountInfo: info,
			})
		}
	} else if err != nil {
		return err
	}

	if resp, err := b.command(ctx, sess, "GET BP"); err == nil && resp != "" {
		if bp := parser.ParseBuyingPower(resp); bp != nil {
			st.SetBuyingPower(*bp)
			b.publish(ctx, &model.UpdateEvent{
				AccountID: accountID, Kind: model.UpdateKindBuyingPower,
				Time: time.Now(), BuyingPower: bp,
			})
		}
	} else if err != nil {
		return err
	}

	b.snapshot(ctx, accountID, st)
	return nil
}

// command runs one refresh command and applies the discard policy: a
// marker mismatch is logged and turned into an empty reply so the caller
// skips it; real command failures propagate.
func (b *Bridge) command(ctx context.Context, sess *dastrader.Session, text string) (string, error) {
	resp, err := sess.SendCommand(ctx, text)
	if err != nil {
		if errors.Is(err, dastrader.ErrResponseMismatch) {
			b.log.Warnw("discarding mismatched reply",
				"account_id", sess.AccountID(), "cmd", text, "bytes", len(resp))
			return "", nil
		}
		return "", err
	}
	return resp, nil
}

// SendCommand forwards a raw command (order entry and the like) to the
// account's session verbatim.
func (b *Bridge) SendCommand(ctx context.Context, accountID, text string) (string, error) {
	sess, ok := b.registry.Get(accountID)
	if !ok {
		return "", dastrader.ErrNotConnected
	}
	return sess.SendCommand(ctx, text)
}

// --- push handlers -------------------------------------------------------

func (b *Bridge) onPositionLine(accountID, line string) {
	st, ok := b.Store(accountID)
	if !ok {
		return
	}
	pos, err := parser.ParsePositionLine(line)
	if err != nil {
		b.log.Warnw("dropping position push", "account_id", accountID, "error", err)
		return
	}
	st.ApplyPosition(*pos)
	b.publish(context.Background(), &model.UpdateEvent{
		AccountID: accountID, Kind: model.UpdateKindPosition,
		Time: time.Now(), Position: pos,
	})
}

func (b *Bridge) onOrderLine(accountID, line string) {
	st, ok := b.Store(accountID)
	if !ok {
		return
	}
	if strings.HasPrefix(line, parser.SigilOrderAction) {
		action, err := parser.ParseOrderAction(line)
		if err != nil {
			b.log.Warnw("dropping order action push", "account_id", accountID, "error", err)
			return
		}
		// an event, not a stored entity
		b.publish(context.Background(), &model.UpdateEvent{
			AccountID: accountID, Kind: model.UpdateKindOrderAction,
			Time: time.Now(), OrderAction: action,
		})
		return
	}
	order, err := parser.ParseOrderLine(line)
	if err != nil {
		b.log.Warnw("dropping order push", "account_id", accountID, "error", err)
		return
	}
	st.ApplyOrder(*order)
	b.publish(context.Background(), &model.UpdateEvent{
		AccountID: accountID, Kind: model.UpdateKindOrder,
		Time: time.Now(), Order: order,
	})
}

func (b *Bridge) onTradeLine(accountID, line string) {
	st, ok := b.Store(accountID)
	if !ok {
		return
	}
	trade, err := parser.ParseTradeLine(line)
	if err != nil {
		b.log.Warnw("dropping trade push", "account_id", accountID, "error", err)
		return
	}
	st.ApplyTrade(*trade)
	b.publish(context.Background(), &model.UpdateEvent{
		AccountID: accountID, Kind: model.UpdateKindTrade,
		Time: time.Now(), Trade: trade,
	})
}

func (b *Bridge) onAccountLine(accountID, line string) {
	st, ok := b.Store(accountID)
	if !ok {
		return
	}
	if strings.HasPrefix(line, parser.SigilAccountInfo) {
		if info := parser.ParseAccountInfo(line); info != nil {
			st.SetAccountInfo(*info)
			b.publish(context.Background(), &model.UpdateEvent{
				AccountID: accountID, Kind: model.UpdateKindAccountInfo,
				Time: time.Now(), AccountInfo: info,
			})
		}
		return
	}
	if bp := parser.ParseBuyingPower(line); bp != nil {
		st.SetBuyingPower(*bp)
		b.publish(context.Background(), &model.UpdateEvent{
			AccountID: accountID, Kind: model.UpdateKindBuyingPower,
			Time: time.Now(), BuyingPower: bp,
		})
	}
}

func (b *Bridge) onQuoteLine(accountID, line string) {
	st, ok := b.Store(accountID)
	if !ok {
		return
	}
	quote := parser.ParseQuote(line)
	if quote == nil {
		return
	}
	st.ApplyQuote(*quote)
	b.publish(context.Background(), &model.UpdateEvent{
		AccountID: accountID, Kind: model.UpdateKindQuote,
		Time: time.Now(), Quote: quote,
	})
}

func (b *Bridge) publish(ctx context.Context, ev *model.UpdateEvent) {
	if b.producer == nil {
		return
	}
	if err := b.producer.PublishJSON(ctx, b.cfg.UpdateTopic, ev.AccountID, ev, nil); err != nil {
		b.log.Warnw("update publish failed", "account_id", ev.AccountID, "kind", ev.Kind, "error", err)
	}
}

func (b *Bridge) snapshot(ctx context.Context, accountID string, st *store.Store) {
	if b.snapshots == nil {
		return
	}
	if err := b.snapshots.Set(ctx, BuildSnapshot(st)); err != nil {
		b.log.Warnw("snapshot write failed", "account_id", accountID, "error", err)
	}
}
