// Package store provee el registry de adaptadores de base de datos y el
// migrator de esquema.
//
// Cada adapter se registra en init(); importar store/adapters/dal para
// habilitar todos los drivers.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dropDatabas3/horizonauth/internal/domain/repository"
)

// Adapter crea conexiones contra un tipo de almacenamiento.
type Adapter interface {
	// Name retorna el nombre del adapter ("postgres", "sqlite").
	Name() string

	Connect(ctx context.Context, cfg AdapterConfig) (Connection, error)
}

// Connection es una conexión activa con acceso a los repositorios.
type Connection interface {
	Name() string
	Ping(ctx context.Context) error
	Close() error

	Identities() repository.ExternalIdentityRepository
	LocalUsers() repository.LocalUserRepository
}

// MigratableConnection la implementan las conexiones que saben aplicar su
// esquema embebido.
type MigratableConnection interface {
	Migrate(ctx context.Context) (*MigrationResult, error)
}

// AdapterConfig configuración para conectar.
type AdapterConfig struct {
	// Name del adapter: "postgres" | "sqlite"
	Name string
	DSN  string

	MaxOpenConns int

	// Sealer cifra la password generada antes de persistirla.
	// nil = Plaintext.
	Sealer Sealer
}

var (
	registryMu sync.RWMutex
	adapters   = make(map[string]Adapter)
)

// RegisterAdapter registra un adapter en el registry global.
// Llamar en init() de cada adapter.
func RegisterAdapter(a Adapter) {
	registryMu.Lock()
	defer registryMu.Unlock()

	name := a.Name()
	if _, exists := adapters[name]; exists {
		panic(fmt.Sprintf("adapter: %q already registered", name))
	}
	adapters[name] = a
}

// GetAdapter obtiene un adapter por nombre.
func GetAdapter(name string) (Adapter, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	a, ok := adapters[name]
	return a, ok
}

// ListAdapters retorna los nombres registrados, ordenados.
func ListAdapters() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(adapters))
	for name := range adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open abre una conexión usando el adapter de cfg.Name.
func Open(ctx context.Context, cfg AdapterConfig) (Connection, error) {
	a, ok := GetAdapter(cfg.Name)
	if !ok {
		return nil, fmt.Errorf("adapter: %q not registered (have %v)", cfg.Name, ListAdapters())
	}
	if cfg.Sealer == nil {
		cfg.Sealer = Plaintext{}
	}
	return a.Connect(ctx, cfg)
}

// Migrate aplica el esquema si la conexión lo soporta.
func Migrate(ctx context.Context, conn Connection) (*MigrationResult, error) {
	m, ok := conn.(MigratableConnection)
	if !ok {
		return nil, fmt.Errorf("adapter %q does not support migrations", conn.Name())
	}
	return m.Migrate(ctx)
}
