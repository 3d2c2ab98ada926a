package memory

import (
	"context"
	"sync"
	"time"

	"github.com/jhoicas/spa-ledger-api/internal/application/billing"
)

var _ billing.IdempotencyGuard = (*IdempotencyGuard)(nil)

type rememberedKey struct {
	invoiceID string
	expires   time.Time
}

// keyLock candado de una clave; refs cuenta quien lo tiene más quienes esperan.
type keyLock struct {
	mu   sync.Mutex
	refs int
}

// IdempotencyGuard versión de un solo proceso del guard de Redis, para el modo demo.
// Un candado vive solo mientras alguien lo tiene o lo espera.
type IdempotencyGuard struct {
	ttl   time.Duration
	mu    sync.Mutex
	locks map[string]*keyLock
	keys  map[string]rememberedKey
}

// NewIdempotencyGuard ttl <= 0 recuerda las claves sin vencimiento.
func NewIdempotencyGuard(ttl time.Duration) *IdempotencyGuard {
	return &IdempotencyGuard{
		ttl:   ttl,
		locks: make(map[string]*keyLock),
		keys:  make(map[string]rememberedKey),
	}
}

// Lock bloquea hasta obtener el candado de la clave o hasta que ctx termine.
func (g *IdempotencyGuard) Lock(ctx context.Context, key string) (func(), error) {
	g.mu.Lock()
	l, ok := g.locks[key]
	if !ok {
		l = &keyLock{}
		g.locks[key] = l
	}
	l.refs++
	g.mu.Unlock()

	release := func() {
		l.mu.Unlock()
		g.unref(key, l)
	}
	acquired := make(chan struct{})
	go func() {
		l.mu.Lock()
		close(acquired)
	}()
	select {
	case <-acquired:
		var once sync.Once
		return func() { once.Do(release) }, nil
	case <-ctx.Done():
		// El candado se libera apenas la goroutine lo obtenga.
		go func() {
			<-acquired
			release()
		}()
		return nil, ctx.Err()
	}
}

func (g *IdempotencyGuard) unref(key string, l *keyLock) {
	g.mu.Lock()
	defer g.mu.Unlock()
	l.refs--
	if l.refs == 0 && g.locks[key] == l {
		delete(g.locks, key)
	}
}

// Lookup devuelve la factura asociada a la clave si no venció.
func (g *IdempotencyGuard) Lookup(_ context.Context, key string) (string, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	k, ok := g.keys[key]
	if !ok {
		return "", false, nil
	}
	if !k.expires.IsZero() && time.Now().After(k.expires) {
		delete(g.keys, key)
		return "", false, nil
	}
	return k.invoiceID, true, nil
}

// Remember asocia la clave a la factura creada y de paso olvida las vencidas.
func (g *IdempotencyGuard) Remember(_ context.Context, key, invoiceID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := time.Now()
	for k, v := range g.keys {
		if !v.expires.IsZero() && now.After(v.expires) {
			delete(g.keys, k)
		}
	}
	k := rememberedKey{invoiceID: invoiceID}
	if g.ttl > 0 {
		k.expires = now.Add(g.ttl)
	}
	g.keys[key] = k
	return nil
}
