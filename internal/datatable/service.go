package datatable

import (
	"github.com/koustreak/dyntable/internal/catalog"
	"github.com/koustreak/dyntable/internal/codes"
	"github.com/koustreak/dyntable/internal/database"
	"github.com/koustreak/dyntable/internal/dialect"
	"github.com/koustreak/dyntable/internal/entity"
	"github.com/koustreak/dyntable/internal/logger"
	"github.com/koustreak/dyntable/internal/resultset"
)

// Options tune datatable behavior per deployment.
type Options struct {
	// ConstraintApproach enforces dropdown columns through a real foreign
	// key to the lookup value table plus a mapping row. When off, the
	// lookup category is baked into the column name instead and no foreign
	// key is created.
	ConstraintApproach bool
}

// Service is the datatable engine: registry, DDL, and row CRUD.
type Service struct {
	db     database.DB
	dl     *dialect.Dialect
	cat    *catalog.Service
	codes  *codes.Service
	rs     *resultset.Service
	scoper *entity.Scoper
	log    *logger.Logger
	opts   Options
}

// New wires a datatable service from its collaborators.
func New(db database.DB, dl *dialect.Dialect, cat *catalog.Service, cd *codes.Service,
	rs *resultset.Service, scoper *entity.Scoper, log *logger.Logger, opts Options) *Service {
	if log == nil {
		log = logger.New(nil)
	}
	return &Service{db: db, dl: dl, cat: cat, codes: cd, rs: rs, scoper: scoper, log: log, opts: opts}
}
