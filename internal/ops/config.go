// Package ops loads the JSON runtime configuration and resolves it
// into the concrete wiring the hedger binary runs with.
package ops

import (
	"os"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"main/internal/engine"
	"main/internal/gateway"
	"main/internal/model/enum"
	"main/internal/registry"
	"main/internal/router"
	"main/pkg/conn"
)

var json = sonic.ConfigFastest

// FileConfig mirrors the on-disk JSON layout.
type FileConfig struct {
	Engine      EngineConfig       `json:"engine"`
	Router      RouterConfig       `json:"router"`
	Store       StoreConfig        `json:"store"`
	Accounts    []AccountConfig    `json:"accounts"`
	Instruments []InstrumentConfig `json:"instruments"`
	Profiling   ProfilingConfig    `json:"profiling"`
}

// EngineConfig carries the dispatch-loop limits and timings.
type EngineConfig struct {
	MinQuantity     decimal.Decimal `json:"minQuantity"`
	MaxQuantity     decimal.Decimal `json:"maxQuantity"`
	TickIntervalMs  int64           `json:"tickIntervalMs"`
	OrderExpiredMs  int64           `json:"orderExpiredMs"`
	SpreadTolerance decimal.Decimal `json:"spreadTolerance"`
	DustNotional    decimal.Decimal `json:"dustNotional"`
	DustSize        decimal.Decimal `json:"dustSize"`
	QueueCapacity   int             `json:"queueCapacity"`
	Async           bool            `json:"async"`
}

func (ec EngineConfig) resolve() engine.Config {
	return engine.Config{
		MinQuantity:     ec.MinQuantity,
		MaxQuantity:     ec.MaxQuantity,
		TickInterval:    time.Duration(ec.TickIntervalMs) * time.Millisecond,
		OrderExpired:    time.Duration(ec.OrderExpiredMs) * time.Millisecond,
		SpreadTolerance: ec.SpreadTolerance,
		DustNotional:    ec.DustNotional,
		DustSize:        ec.DustSize,
		QueueCapacity:   ec.QueueCapacity,
		Async:           ec.Async,
	}
}

// RouterConfig carries the depth-query and quote-improvement knobs.
type RouterConfig struct {
	DepthSize        decimal.Decimal `json:"depthSize"`
	DepthSafetyRatio decimal.Decimal `json:"depthSafetyRatio"`
	ImproveTick      bool            `json:"improveTick"`
}

// StoreConfig carries PostgreSQL connection settings. An empty Host
// with an empty ConnString selects the in-memory store.
type StoreConfig struct {
	Host       string `json:"host"`
	Port       int    `json:"port"`
	User       string `json:"user"`
	Password   string `json:"password"`
	Database   string `json:"database"`
	SSLMode    string `json:"sslMode"`
	ConnString string `json:"connString"`
}

// Enabled reports whether a database connection is configured.
func (s StoreConfig) Enabled() bool {
	return len(s.Host) != 0 || len(s.ConnString) != 0
}

// AccountConfig names one exchange account and the gateway factory
// that builds its connection.
type AccountConfig struct {
	Name    string            `json:"name"`
	Gateway string            `json:"gateway"`
	Params  map[string]string `json:"params"`
}

// InstrumentConfig lists the accounts permitted to hedge one
// instrument.
type InstrumentConfig struct {
	Name   string        `json:"name"`
	Routes []RouteConfig `json:"routes"`
}

// RouteConfig is one instrument/account pairing.
type RouteConfig struct {
	Account        string `json:"account"`
	Symbol         string `json:"symbol"`
	Side           string `json:"side"` // buy, sell or both
	PricePrecision int32  `json:"pricePrecision"`
	SizePrecision  int32  `json:"sizePrecision"`
	Priority       int    `json:"priority"`
}

// ProfilingConfig enables continuous profiling.
type ProfilingConfig struct {
	Enable          bool   `json:"enable"`
	ServerAddress   string `json:"serverAddress"`
	ApplicationName string `json:"applicationName"`
}

// Runtime is the resolved form of a FileConfig, ready to wire into
// the engine.
type Runtime struct {
	Engine    engine.Config
	Router    router.Config
	Registry  *registry.Registry
	Gateways  map[string]gateway.Gateway
	Store     StoreConfig
	Profiling ProfilingConfig
}

// Load reads and resolves the configuration at path.
func Load(path string) (*Runtime, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config file")
	}
	return Parse(buf)
}

// Parse resolves raw JSON configuration bytes.
func Parse(buf []byte) (*Runtime, error) {
	var fc FileConfig
	if err := json.Unmarshal(buf, &fc); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	return fc.Resolve()
}

// LoadEngine reads only the engine tunables from the configuration at
// path. Used by hot reload, which must not construct gateways just to
// throw them away.
func LoadEngine(path string) (engine.Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return engine.Config{}, errors.Wrap(err, "read config file")
	}
	return ParseEngine(buf)
}

// ParseEngine extracts the engine tunables from raw JSON configuration
// bytes without resolving accounts, routes or gateways.
func ParseEngine(buf []byte) (engine.Config, error) {
	var fc FileConfig
	if err := json.Unmarshal(buf, &fc); err != nil {
		return engine.Config{}, errors.Wrap(err, "unmarshal config")
	}
	return fc.Engine.resolve(), nil
}

// Resolve validates the file config and builds the runtime wiring.
func (fc FileConfig) Resolve() (*Runtime, error) {
	gateways := make(map[string]gateway.Gateway, len(fc.Accounts))
	for _, acc := range fc.Accounts {
		if len(acc.Name) == 0 {
			return nil, errors.New("account name is empty")
		}
		if _, ok := gateways[acc.Name]; ok {
			return nil, errors.Errorf("duplicate account: %s", acc.Name)
		}
		gw, err := gateway.New(acc.Gateway, acc.Name, acc.Params)
		if err != nil {
			return nil, errors.Wrapf(err, "build gateway for account %s", acc.Name)
		}
		gateways[acc.Name] = gw
	}

	reg := registry.NewRegistry()
	for _, inst := range fc.Instruments {
		for _, rc := range inst.Routes {
			if _, ok := gateways[rc.Account]; !ok {
				return nil, errors.Errorf("route %s/%s references unknown account", inst.Name, rc.Account)
			}
			perm, err := parsePermission(rc.Side)
			if err != nil {
				return nil, errors.Wrapf(err, "route %s/%s", inst.Name, rc.Account)
			}
			err = reg.Add(inst.Name, registry.Route{
				Account:        rc.Account,
				ExchangeSymbol: rc.Symbol,
				Permitted:      perm,
				PricePrecision: rc.PricePrecision,
				SizePrecision:  rc.SizePrecision,
				Priority:       rc.Priority,
			})
			if err != nil {
				return nil, errors.Wrap(err, "register route")
			}
		}
	}

	return &Runtime{
		Engine: fc.Engine.resolve(),
		Router: router.Config{
			DepthSize:        fc.Router.DepthSize,
			DepthSafetyRatio: fc.Router.DepthSafetyRatio,
			ImproveTick:      fc.Router.ImproveTick,
		},
		Registry:  reg,
		Gateways:  gateways,
		Store:     fc.Store,
		Profiling: fc.Profiling,
	}, nil
}

// ConnOption converts the store settings into a connection option.
func (s StoreConfig) ConnOption() conn.Option {
	return conn.Option{
		Host:       s.Host,
		Port:       s.Port,
		User:       s.User,
		Password:   s.Password,
		Database:   s.Database,
		SSLMode:    s.SSLMode,
		ConnString: s.ConnString,
	}
}

func parsePermission(side string) (enum.Permission, error) {
	switch strings.ToLower(side) {
	case "", "both":
		return enum.PermissionBoth, nil
	case "buy":
		return enum.PermissionBuy, nil
	case "sell":
		return enum.PermissionSell, nil
	default:
		return 0, errors.Errorf("unknown side: %s", side)
	}
}
