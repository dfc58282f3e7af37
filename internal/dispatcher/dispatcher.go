package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jmehdipour/intent-gateway/internal/catalog"
	"github.com/jmehdipour/intent-gateway/internal/customer"
	"github.com/jmehdipour/intent-gateway/internal/logger"
	"github.com/jmehdipour/intent-gateway/internal/metrics"
	"github.com/jmehdipour/intent-gateway/internal/model"
	"github.com/jmehdipour/intent-gateway/internal/plan"
	"github.com/jmehdipour/intent-gateway/internal/ratelimit"
	"github.com/jmehdipour/intent-gateway/internal/store"
	"github.com/jmehdipour/intent-gateway/internal/util"
)

const auditTimeout = 5 * time.Second

type Directory interface {
	Resolve(ctx context.Context, credential string) (model.Customer, error)
}

type Plans interface {
	Get(id string) (plan.Plan, error)
}

type Authorizer interface {
	Authorize(p plan.Plan, tool string) error
}

type Limiter interface {
	Reserve(ctx context.Context, customerID int64, day string, limit *uint64) (ratelimit.Reservation, error)
}

type Catalog interface {
	Get(name string) (catalog.Tool, bool)
}

type Executor interface {
	ExecuteQuery(ctx context.Context, templateID string, params []any, maxRows int) ([]store.Row, error)
}

type Meter interface {
	Record(ctx context.Context, customerID int64, tool, requestID string, admittedAt time.Time) error
}

type AuditLog interface {
	Append(ctx context.Context, e model.AuditEntry, args map[string]any) error
}

// Deps are the components one call passes through.
type Deps struct {
	Directory Directory
	Plans     Plans
	Access    Authorizer
	Limiter   Limiter
	Catalog   Catalog
	Executor  Executor
	Meter     Meter
	Audit     AuditLog
}

// Call is one tool invocation as received from a transport.
type Call struct {
	RequestID    string
	Credential   string
	Tool         string
	Arguments    map[string]any
	// ArgumentsErr is set when the payload could not be decoded. The call is
	// still authenticated, authorized, charged and audited, then refused at
	// validation.
	ArgumentsErr error
	ClientIP     string
	UserAgent    string
}

// Result is what a successful call returns. Text is the JSON encoding of
// Rows.
type Result struct {
	RequestID string
	Tool      string
	Rows      []store.Row
	Text      string
	Quota     ratelimit.Reservation
	RowCount  int
	Truncated bool
}

// Dispatcher runs every call through the same ordered pipeline and writes
// exactly one audit entry per call.
type Dispatcher struct {
	deps   Deps
	policy catalog.LimitPolicy
	now    func() time.Time
	stages []stage
}

func New(deps Deps, policy catalog.LimitPolicy) *Dispatcher {
	d := &Dispatcher{deps: deps, policy: policy, now: time.Now}
	d.stages = []stage{
		{name: "authenticate", done: Authenticated, run: d.authenticate},
		{name: "authorize", done: Authorized, run: d.authorize},
		{name: "reserve_quota", done: QuotaChecked, run: d.reserveQuota},
		{name: "validate", done: ArgumentsValidated, run: d.validate},
		{name: "execute", done: Executed, run: d.execute},
		{name: "meter", done: Metered, run: d.meter, afterCommit: true},
	}
	return d
}

type stage struct {
	run  func(ctx context.Context, c *callState) error
	name string
	done State
	// afterCommit stages run even if the caller went away.
	afterCommit bool
}

// callState carries what earlier stages learned to later ones.
type callState struct {
	call     Call
	customer model.Customer
	plan     plan.Plan
	tool     catalog.Tool
	args     catalog.Args
	rows     []store.Row
	quota    ratelimit.Reservation
	admitted time.Time
	state    State
	stage    string
	executed bool
}

// Dispatch authenticates, authorizes, reserves quota, validates, executes
// and meters the call, then audits it. Failures come back as *Error.
func (d *Dispatcher) Dispatch(ctx context.Context, call Call) (Result, error) {
	start := d.now()
	if call.RequestID == "" {
		call.RequestID = util.NewID()
	}
	c := &callState{call: call, state: Received}

	var err error
	for _, s := range d.stages {
		if !s.afterCommit && ctx.Err() != nil {
			c.stage = s.name
			err = errCanceled
			break
		}
		c.stage = s.name
		if err = d.runStage(ctx, s, c); err != nil {
			if !s.afterCommit {
				break
			}
			err = nil
		}
		c.state = s.done
	}

	var res Result
	var derr *Error
	if err == nil {
		res, err = d.result(c)
		if err != nil {
			c.stage = "respond"
		}
	}
	if err != nil {
		derr = toError(err, d.now())
	}

	d.audit(ctx, c, derr, d.now().Sub(start))
	c.state = Responded

	outcome := "ok"
	if derr != nil {
		outcome = string(derr.Code)
	}
	toolLabel := "unknown"
	if _, ok := d.deps.Catalog.Get(call.Tool); ok {
		toolLabel = call.Tool
	}
	metrics.CallsTotal.WithLabelValues(toolLabel, outcome).Inc()
	metrics.CallDuration.WithLabelValues(toolLabel).Observe(d.now().Sub(start).Seconds())

	logger.Log.Debug("call dispatched",
		zap.String("request_id", call.RequestID),
		zap.String("tool", call.Tool),
		zap.String("stage", c.stage),
		zap.String("outcome", outcome),
		zap.Stringer("state", c.state),
	)

	if derr != nil {
		return Result{}, derr
	}
	return res, nil
}

func (d *Dispatcher) runStage(ctx context.Context, s stage, c *callState) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Error("stage panicked",
				zap.String("stage", s.name),
				zap.String("request_id", c.call.RequestID),
				zap.Any("panic", r),
			)
			err = panicError{v: r}
		}
	}()
	if s.afterCommit {
		ctx = context.WithoutCancel(ctx)
	}
	return s.run(ctx, c)
}

func (d *Dispatcher) authenticate(ctx context.Context, c *callState) error {
	cust, err := d.deps.Directory.Resolve(ctx, c.call.Credential)
	if errors.Is(err, customer.ErrInactive) {
		c.customer = cust
	}
	if err != nil {
		return err
	}
	c.customer = cust
	return nil
}

func (d *Dispatcher) authorize(_ context.Context, c *callState) error {
	p, err := d.deps.Plans.Get(c.customer.PlanID)
	if err != nil {
		return err
	}
	if err := d.deps.Access.Authorize(p, c.call.Tool); err != nil {
		return err
	}
	t, ok := d.deps.Catalog.Get(c.call.Tool)
	if !ok {
		return fmt.Errorf("tool %q authorized but missing from catalog", c.call.Tool)
	}
	c.plan = p
	c.tool = t
	return nil
}

func (d *Dispatcher) reserveQuota(ctx context.Context, c *callState) error {
	now := d.now()
	r, err := d.deps.Limiter.Reserve(ctx, c.customer.ID, model.DayBucket(now), c.plan.DailyQuota)
	if err != nil {
		return err
	}
	c.quota = r
	c.admitted = now
	return nil
}

func (d *Dispatcher) validate(_ context.Context, c *callState) error {
	if c.call.ArgumentsErr != nil {
		return &catalog.ValidationError{Code: catalog.Malformed}
	}
	args, err := catalog.Validate(c.tool, c.call.Arguments, d.policy, c.plan.MaxResultRows)
	if err != nil {
		return err
	}
	c.args = args
	return nil
}

func (d *Dispatcher) execute(ctx context.Context, c *callState) error {
	b := c.tool.Bind(c.args)
	rows, err := d.deps.Executor.ExecuteQuery(ctx, b.TemplateID, b.Params, maxRows(c.plan))
	if err != nil {
		return err
	}
	c.rows = rows
	c.executed = true
	return nil
}

// meter never fails the call; the meter logs its own failures. Usage is
// billed to the day the quota was reserved in.
func (d *Dispatcher) meter(ctx context.Context, c *callState) error {
	_ = d.deps.Meter.Record(ctx, c.customer.ID, c.call.Tool, c.call.RequestID, c.admitted)
	return nil
}

func (d *Dispatcher) result(c *callState) (Result, error) {
	rows := c.rows
	truncated := false
	if n := maxRows(c.plan); n > 0 && len(rows) > n {
		rows = rows[:n]
		truncated = true
	}
	if rows == nil {
		rows = []store.Row{}
	}
	text, err := json.Marshal(rows)
	if err != nil {
		return Result{}, fmt.Errorf("encode rows: %w", err)
	}
	c.rows = rows
	return Result{
		RequestID: c.call.RequestID,
		Tool:      c.call.Tool,
		Rows:      rows,
		Text:      string(text),
		Quota:     c.quota,
		RowCount:  len(rows),
		Truncated: truncated,
	}, nil
}

func (d *Dispatcher) audit(ctx context.Context, c *callState, derr *Error, latency time.Duration) {
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()

	e := model.AuditEntry{
		ID:         c.call.RequestID,
		CustomerID: c.customer.ID,
		ToolName:   c.call.Tool,
		LatencyMs:  latency.Milliseconds(),
		Success:    derr == nil,
		Stage:      c.stage,
		ClientIP:   c.call.ClientIP,
		UserAgent:  c.call.UserAgent,
	}
	if derr != nil {
		e.Reason = string(derr.Code)
	} else {
		e.Stage = "completed"
	}
	if c.executed {
		n := len(c.rows)
		e.ResultSize = &n
	}

	err := d.deps.Audit.Append(actx, e, c.call.Arguments)
	c.state = Logged
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Log.Warn("audit append failed", zap.String("request_id", c.call.RequestID), zap.Error(err))
	}
}

func maxRows(p plan.Plan) int {
	if p.MaxResultRows == nil {
		return 0
	}
	return int(*p.MaxResultRows)
}
