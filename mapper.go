package flatmapper

import (
	"context"
	"fmt"
	"go.uber.org/zap"
	"iter"
	"sync"
)

// Mapper is the main flat row mapper interface
type Mapper interface {
	// Plan returns the mapping plan for the named root type - building it (or fetching it from the Cache) on first use
	Plan(typeName string) (*Plan, error)
	// Map maps a slice of rows into instances of the named root type
	//
	// options can be any of Limiter, ErrorTranslator or PostProcessor
	Map(ctx context.Context, typeName string, rows []Row, options ...any) (*Collection, error)
	// Hydrate consumes a row sequence (once, forward only) and maps it into instances of the named root type
	//
	// the returned Collection is keyed by root identifier value, in first seen order - it is empty (not nil) if no rows produced a root instance
	//
	// options can be any of Limiter, ErrorTranslator or PostProcessor
	Hydrate(ctx context.Context, typeName string, rows iter.Seq2[Row, error], options ...any) (*Collection, error)
	// Query executes the sql query and maps the resulting rows into instances of the named root type
	//
	// options can be any of Limiter, ErrorTranslator or PostProcessor
	Query(ctx context.Context, sqli SqlInterface, typeName string, query string, args []any, options ...any) (*Collection, error)
}

// ValidateMapping is an option that determines whether plans are validated when built
//
// by default, Mapper validates plans
type ValidateMapping bool

// UseDecimals is an option that determines whether float/numeric/decimal columns should be read as decimal.Decimal values (by Mapper.Query)
//
// by default, Mapper will convert float/numeric/decimal columns to decimal.Decimal
type UseDecimals bool

// NewMapper creates a new flat row mapper that reads type descriptors from the supplied MetadataReader
//
// options can be any of ValidateMapping, Cache, *zap.Logger, UseDecimals, ColumnScanners, ErrorTranslator or PostProcessor
func NewMapper(reader MetadataReader, options ...any) (Mapper, error) {
	return newMapper(reader, options...)
}

// MustNewMapper is the same as NewMapper, except it panics on error
func MustNewMapper(reader MetadataReader, options ...any) Mapper {
	m, err := NewMapper(reader, options...)
	if err != nil {
		panic(err)
	}
	return m
}

func newMapper(reader MetadataReader, options ...any) (*mapper, error) {
	if reader == nil {
		return nil, fmt.Errorf("metadata reader cannot be nil")
	}
	result := &mapper{
		reader:          reader,
		plans:           map[string]*Plan{},
		validate:        true,
		useDecimals:     true,
		logger:          zap.NewNop(),
		errorTranslator: defaultErrorTranslator,
	}
	if err := result.addOptions(options...); err != nil {
		return nil, err
	}
	return result, nil
}

type mapper struct {
	mutex           sync.RWMutex
	reader          MetadataReader
	plans           map[string]*Plan
	validate        bool
	useDecimals     bool
	scanners        ColumnScanners
	cache           Cache
	logger          *zap.Logger
	errorTranslator ErrorTranslator
	postProcessors  []PostProcessor
}

var _ Mapper = (*mapper)(nil)

func (m *mapper) Plan(typeName string) (*Plan, error) {
	p, err := m.getPlan(typeName)
	return p, translateError(err, m.errorTranslator)
}

func (m *mapper) Map(ctx context.Context, typeName string, rows []Row, options ...any) (*Collection, error) {
	return m.Hydrate(ctx, typeName, Rows(rows...), options...)
}

func (m *mapper) Hydrate(ctx context.Context, typeName string, rows iter.Seq2[Row, error], options ...any) (result *Collection, err error) {
	limiter, postProcessors, errTranslator, err := m.callOptions(options)
	if err != nil {
		return nil, translateError(err, m.errorTranslator)
	}
	var plan *Plan
	if plan, err = m.getPlan(typeName); err == nil {
		h := newHydration(plan)
		rowCount := 0
		for row, rowErr := range rows {
			if rowErr != nil {
				err = rowErr
				break
			}
			rowCount++
			if limiter.LimitReached(rowCount) {
				break
			}
			if err = h.scan(row); err != nil {
				break
			}
		}
		if err == nil {
			if err = h.link(); err == nil {
				result = h.result()
				err = runPostProcessors(ctx, typeName, result, postProcessors)
			}
		}
		if err == nil {
			m.logger.Debug("hydrated rows",
				zap.String("type", typeName),
				zap.Int("rows", h.rows),
				zap.Int("instances", result.Len()))
		}
	}
	if err != nil {
		return nil, translateError(err, errTranslator)
	}
	return result, nil
}

func (m *mapper) Query(ctx context.Context, sqli SqlInterface, typeName string, query string, args []any, options ...any) (*Collection, error) {
	_, _, errTranslator, err := m.callOptions(options)
	if err != nil {
		return nil, translateError(err, m.errorTranslator)
	}
	if _, err = m.getPlan(typeName); err != nil {
		return nil, translateError(err, errTranslator)
	}
	rows, err := sqli.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translateError(err, errTranslator)
	}
	defer func() {
		_ = rows.Close()
	}()
	return m.Hydrate(ctx, typeName, SQLRows(rows, UseDecimals(m.useDecimals), m.scanners), options...)
}

func (m *mapper) getPlan(typeName string) (*Plan, error) {
	m.mutex.RLock()
	if p, ok := m.plans[typeName]; ok {
		m.mutex.RUnlock()
		return p, nil
	}
	m.mutex.RUnlock()
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if p, ok := m.plans[typeName]; ok {
		return p, nil
	}
	compute := func() (*Plan, error) {
		return buildPlan(m.reader, typeName, m.validate)
	}
	var p *Plan
	var err error
	if m.cache != nil {
		p, err = m.cache.GetOrCompute(CacheKey(typeName), compute)
	} else {
		p, err = compute()
	}
	if err != nil {
		m.logger.Debug("mapping plan failed", zap.String("type", typeName), zap.Error(err))
		return nil, err
	}
	m.plans[typeName] = p
	m.logger.Debug("built mapping plan",
		zap.String("type", typeName),
		zap.Int("types", len(p.Types)),
		zap.Stringer("plan", p))
	return p, nil
}

func (m *mapper) addOptions(options ...any) error {
	for _, o := range options {
		if o != nil {
			switch option := o.(type) {
			case ValidateMapping:
				m.validate = bool(option)
			case UseDecimals:
				m.useDecimals = bool(option)
			case ColumnScanners:
				m.scanners = option
			case Cache:
				m.cache = option
			case *zap.Logger:
				m.logger = option
			case ErrorTranslator:
				m.errorTranslator = option
			case PostProcessor:
				m.postProcessors = append(m.postProcessors, option)
			default:
				return fmt.Errorf("unknown option type: %T", o)
			}
		}
	}
	return nil
}

func (m *mapper) callOptions(options []any) (limiter Limiter, postProcessors []PostProcessor, errorTranslator ErrorTranslator, err error) {
	limiter = defaultLimiter
	errorTranslator = m.errorTranslator
	postProcessors = append(postProcessors, m.postProcessors...)
	for _, o := range options {
		if o != nil {
			switch option := o.(type) {
			case Limiter:
				limiter = option
			case ErrorTranslator:
				errorTranslator = option
			case PostProcessor:
				postProcessors = append(postProcessors, option)
			default:
				err = fmt.Errorf("unknown option type: %T", o)
				return
			}
		}
	}
	return
}

// MapAs is the same as Mapper.Map, except that it returns the root instances as a typed slice
func MapAs[T any](ctx context.Context, m Mapper, typeName string, rows []Row, options ...any) ([]T, error) {
	c, err := m.Map(ctx, typeName, rows, options...)
	if err != nil {
		return nil, err
	}
	return Values[T](c)
}

// HydrateAs is the same as Mapper.Hydrate, except that it returns the root instances as a typed slice
func HydrateAs[T any](ctx context.Context, m Mapper, typeName string, rows iter.Seq2[Row, error], options ...any) ([]T, error) {
	c, err := m.Hydrate(ctx, typeName, rows, options...)
	if err != nil {
		return nil, err
	}
	return Values[T](c)
}
