package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/JonMunkholm/sheetflow/internal/logging"
)

// OutputExt is the extension of every normalized file.
const OutputExt = ".csv"

// Input is one grid-backed file of a batch. Open is called at most once,
// when the file's turn comes.
type Input struct {
	Name string
	Open func(ctx context.Context) (Grid, error)
}

// TextInput is one already-delimited file of a batch.
type TextInput struct {
	Name string
	Read func(ctx context.Context) (string, error)
}

// Sink stores normalized output. Write returns where the content went.
type Sink interface {
	Write(ctx context.Context, name string, content []byte) (string, error)
}

// ServiceConfig wires a Service.
type ServiceConfig struct {
	Registry         *Registry
	Replacements     []Replacement
	InputSeparator   string // text and csv modes
	OutputSeparator  string
	DecimalSeparator string
	Sink             Sink
	Reporter         Reporter
}

// Service runs batches. Runs are serialized: one BatchContext at a time.
type Service struct {
	registry    *Registry
	classifier  *Classifier
	transformer *Transformer
	validator   *ColumnValidator
	substitutor *Substitutor
	writer      *TableWriter
	sink        Sink
	reporter    Reporter
	inSep       string
	outSep      string

	mu sync.Mutex
}

// NewService creates a new Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Registry == nil {
		return nil, errors.New("registry is required")
	}
	if cfg.Sink == nil {
		return nil, errors.New("sink is required")
	}
	if cfg.OutputSeparator == "" {
		cfg.OutputSeparator = ";"
	}
	if cfg.InputSeparator == "" {
		cfg.InputSeparator = cfg.OutputSeparator
	}
	if cfg.Reporter == nil {
		cfg.Reporter = LogReporter{}
	}

	writer, err := NewTableWriter(cfg.OutputSeparator)
	if err != nil {
		return nil, fmt.Errorf("output separator: %w", err)
	}

	return &Service{
		registry:    cfg.Registry,
		classifier:  NewClassifier(cfg.Registry),
		transformer: NewTransformer(cfg.DecimalSeparator),
		validator:   NewColumnValidator(cfg.Registry),
		substitutor: NewSubstitutor(cfg.Replacements),
		writer:      writer,
		sink:        cfg.Sink,
		reporter:    cfg.Reporter,
		inSep:       cfg.InputSeparator,
		outSep:      cfg.OutputSeparator,
	}, nil
}

// Registry returns the schemas the service runs against.
func (s *Service) Registry() *Registry {
	return s.registry
}

// Validate runs the column validator on delimited text using the input
// separator.
func (s *Service) Validate(typeID, content string) error {
	return s.validator.Validate(typeID, content, s.inSep)
}

// RunGrids processes grid-backed inputs (xlsx or csv mode).
//
// Pass 1 assigns files by filename prefix, pass 2 by header structure over
// the types still free. A file rejected in pass 1 is not retried in pass 2.
// A type is occupied only once its output was written, so a failed file
// never consumes a type a later file could still take.
//
// Per-file failures never abort the run. A cancelled context stops the run
// between files and is returned with the partial report.
func (s *Service) RunGrids(ctx context.Context, mode InputMode, inputs []Input) (RunReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch, ctx := s.startBatch(ctx, mode)
	logger := logging.FromContext(ctx)
	logger.Info("run started", "mode", string(mode), "files", len(inputs), "schemas", s.registry.Len())

	if s.registry.Len() == 0 {
		logger.Warn("no schemas registered, every file will be rejected", "degraded", s.registry.Degraded())
		for _, in := range inputs {
			s.reject(ctx, batch, FileResult{File: in.Name}, &ClassificationError{File: in.Name, Reason: "no schemas registered"})
		}
		return s.finish(ctx, batch), nil
	}

	// Pass 1: by filename.
	var pending []Input
	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			return s.finish(ctx, batch), err
		}
		a, ok := s.classifier.ByFilename(in.Name, batch)
		if !ok {
			pending = append(pending, in)
			continue
		}
		grid, err := in.Open(ctx)
		if err != nil {
			s.reject(ctx, batch, FileResult{File: in.Name}, readError(in.Name, err))
			continue
		}
		s.reporter.Classified(ctx, in.Name, a.TypeID, a.Method)
		s.processGrid(ctx, batch, in.Name, grid, a)
	}

	// Pass 2: by structure.
	for _, in := range pending {
		if err := ctx.Err(); err != nil {
			return s.finish(ctx, batch), err
		}
		grid, err := in.Open(ctx)
		if err != nil {
			s.reject(ctx, batch, FileResult{File: in.Name}, readError(in.Name, err))
			continue
		}
		if len(grid) == 0 {
			s.reject(ctx, batch, FileResult{File: in.Name}, ErrEmptyFile)
			continue
		}
		a, err := s.classifier.ByStructure(in.Name, grid, batch)
		if err != nil {
			s.reject(ctx, batch, FileResult{File: in.Name}, err)
			continue
		}
		s.reporter.Classified(ctx, in.Name, a.TypeID, a.Method)
		s.processGrid(ctx, batch, in.Name, grid, a)
	}

	return s.finish(ctx, batch), nil
}

// processGrid transforms, serializes, validates, substitutes and stores one
// classified grid, then commits its type.
func (s *Service) processGrid(ctx context.Context, batch *BatchContext, name string, grid Grid, a Assignment) {
	res := FileResult{File: name, TypeID: a.TypeID, Method: a.Method}

	schema, ok := s.registry.Get(a.TypeID)
	if !ok {
		s.reject(ctx, batch, res, &ClassificationError{File: name, Reason: "unknown type " + a.TypeID, Err: ErrUnknownType})
		return
	}

	table, stats, err := s.transformer.Transform(grid, schema)
	if err != nil {
		s.reject(ctx, batch, res, err)
		return
	}
	for _, w := range stats.DateFallbacks {
		s.reporter.Warning(ctx, name, w)
	}

	text, err := s.writer.Render(table)
	if err != nil {
		s.reject(ctx, batch, res, err)
		return
	}
	if err := s.validator.Validate(a.TypeID, text, s.outSep); err != nil {
		s.reject(ctx, batch, res, err)
		return
	}
	text, sub := s.substitutor.Apply(text, s.outSep, s.outSep)

	res.Rows = stats.Rows
	res.Columns = stats.Columns
	res.Substitutions = sub.Substitutions
	res.DateFallbacks = len(stats.DateFallbacks)
	if !s.store(ctx, batch, &res, a.TypeID+OutputExt, text) {
		return
	}
	s.reporter.Converted(ctx, res, stats)
}

// RunText processes already-delimited inputs. The type comes from the
// filename prefix; the content is validated with the input separator, then
// substituted and converted to the output separator.
//
// With a degraded registry nothing is validated and unmatched files pass
// through under their own name.
func (s *Service) RunText(ctx context.Context, inputs []TextInput) (RunReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch, ctx := s.startBatch(ctx, ModeText)
	logging.FromContext(ctx).Info("run started", "mode", string(ModeText), "files", len(inputs), "schemas", s.registry.Len())

	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			return s.finish(ctx, batch), err
		}
		s.processText(ctx, batch, in)
	}
	return s.finish(ctx, batch), nil
}

func (s *Service) processText(ctx context.Context, batch *BatchContext, in TextInput) {
	res := FileResult{File: in.Name}

	typeID, ok := s.registry.LookupByFilenamePrefix(FileStem(in.Name))
	output := typeID + OutputExt
	switch {
	case ok && batch.IsOccupied(typeID):
		by, _ := batch.OccupiedBy(typeID)
		s.reject(ctx, batch, res, &ClassificationError{File: in.Name, Reason: fmt.Sprintf("type %s already taken by %s", typeID, by)})
		return
	case ok:
		res.TypeID = typeID
		res.Method = MatchByName
		s.reporter.Classified(ctx, in.Name, typeID, MatchByName)
	case s.registry.Degraded():
		output = FileStem(in.Name) + OutputExt
	default:
		s.reject(ctx, batch, res, &ClassificationError{File: in.Name, Reason: "no type id prefixes the file name"})
		return
	}

	content, err := in.Read(ctx)
	if err != nil {
		s.reject(ctx, batch, res, readError(in.Name, err))
		return
	}
	if res.TypeID != "" {
		if err := s.validator.Validate(res.TypeID, content, s.inSep); err != nil {
			s.reject(ctx, batch, res, err)
			return
		}
	}

	text, sub := s.substitutor.Apply(content, s.inSep, s.outSep)
	res.Substitutions = sub.Substitutions
	res.SeparatorReplacements = sub.SeparatorReplacements
	res.Rows, res.Columns = textShape(text, s.outSep)
	if !s.store(ctx, batch, &res, output, text) {
		return
	}
	s.reporter.Converted(ctx, res, TransformStats{Rows: res.Rows, Columns: res.Columns})
}

// store writes the output and commits the type. Returns false if the file
// was rejected.
func (s *Service) store(ctx context.Context, batch *BatchContext, res *FileResult, name, text string) bool {
	loc, err := s.sink.Write(ctx, name, []byte(text))
	if err != nil {
		var ioErr *IOError
		if !errors.As(err, &ioErr) {
			err = &IOError{Op: "write", Path: name, Err: err}
		}
		s.reject(ctx, batch, *res, err)
		return false
	}
	res.Output = loc
	if res.TypeID != "" {
		batch.Occupy(res.TypeID, res.File)
	}
	batch.RecordSuccess(*res)
	return true
}

func (s *Service) startBatch(ctx context.Context, mode InputMode) (*BatchContext, context.Context) {
	batch := NewBatchContext(mode)
	batch.Trigger = TriggerFromContext(ctx)
	return batch, logging.ContextWithRunID(ctx, batch.RunID)
}

func (s *Service) reject(ctx context.Context, batch *BatchContext, res FileResult, err error) {
	s.reporter.Rejected(ctx, res.File, err)
	batch.RecordRejection(res, err)
}

func (s *Service) finish(ctx context.Context, batch *BatchContext) RunReport {
	report := batch.Report()
	s.reporter.RunFinished(ctx, report)
	return report
}

func readError(name string, err error) error {
	if errors.Is(err, ErrEmptyFile) || errors.Is(err, context.Canceled) {
		return err
	}
	var ioErr *IOError
	if errors.As(err, &ioErr) {
		return err
	}
	return &IOError{Op: "read", Path: name, Err: err}
}

// textShape counts data rows and header columns of delimited text.
func textShape(text, sep string) (rows, cols int) {
	text = strings.TrimRight(text, "\r\n")
	if text == "" {
		return 0, 0
	}
	lines := strings.Split(text, "\n")
	return len(lines) - 1, len(strings.Split(lines[0], sep))
}
