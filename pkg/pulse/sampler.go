package pulse

import (
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/rs/zerolog"
)

// Decision reasons.
const (
	ReasonDisabled     = "disabled"
	ReasonAdmin        = "admin"
	ReasonStaticAsset  = "static_asset"
	ReasonCLI          = "cli"
	ReasonAJAX         = "ajax"
	ReasonREST         = "rest"
	ReasonCron         = "cron"
	ReasonExcludedRule = "excluded_rule"
	ReasonSampled      = "sampled"
	ReasonNotSampled   = "not_sampled"
)

// builtinIgnoredPatterns are requests browsers make on their own plus static files.
var builtinIgnoredPatterns = []string{
	`/favicon\.ico`,
	`/robots\.txt`,
	`/apple-touch-icon`,
	`/browserconfig\.xml`,
	`/manifest\.json`,
	`\.(css|js|png|jpg|jpeg|gif|svg|ico|woff|woff2|ttf|eot|map|webp|avif|pdf|zip|mp4|webm|mp3|wav)$`,
}

// Decision is the outcome of the sampling gate.
type Decision struct {
	Profile bool
	Reason  string
}

// Sampler decides once per request whether it is profiled.
type Sampler struct {
	site    Site
	ignored []*regexp.Regexp
	rules   []compiledRule
	logger  zerolog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

type compiledRule struct {
	expr string
	prg  cel.Program
}

// SamplerOption configures a Sampler.
type SamplerOption func(*Sampler)

// WithRandSource replaces the random source used for the sampling draw.
func WithRandSource(src rand.Source) SamplerOption {
	return func(s *Sampler) {
		s.rng = rand.New(src) //nolint:gosec // sampling does not need crypto randomness
	}
}

// WithSamplerLogger sets the logger used to report dropped rules.
func WithSamplerLogger(logger zerolog.Logger) SamplerOption {
	return func(s *Sampler) {
		s.logger = logger
	}
}

// NewSampler compiles the ignored paths and exclusion rules of settings.
// Patterns or rules that do not compile are dropped with a warning.
func NewSampler(site Site, settings Settings, opts ...SamplerOption) *Sampler {
	s := &Sampler{
		site:   site,
		logger: zerolog.Nop(),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // sampling does not need crypto randomness
	}
	for _, opt := range opts {
		opt(s)
	}

	patterns := append([]string{}, builtinIgnoredPatterns...)
	if dir := strings.Trim(site.Roots.ContentDir, "/"); dir != "" {
		patterns = append(patterns,
			`/`+regexp.QuoteMeta(dir)+`/.+\.(css|js|png|jpg|jpeg|gif|svg|ico|woff|woff2|ttf|eot|map|webp|avif)$`)
	}
	patterns = append(patterns, settings.IgnoredPaths...)

	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			s.logger.Warn().Err(err).Str("pattern", p).Msg("Dropping invalid ignored path pattern")
			continue
		}
		s.ignored = append(s.ignored, re)
	}

	if len(settings.ExcludeRules) > 0 {
		env, err := newRuleEnv()
		if err != nil {
			s.logger.Warn().Err(err).Msg("Exclusion rules disabled")
			return s
		}
		for _, expr := range settings.ExcludeRules {
			prg, err := compileRule(env, expr)
			if err != nil {
				s.logger.Warn().Err(err).Str("rule", expr).Msg("Dropping exclusion rule")
				continue
			}
			s.rules = append(s.rules, compiledRule{expr: expr, prg: prg})
		}
	}

	return s
}

// ShouldProfile is Decide without the reason.
func (s *Sampler) ShouldProfile(rc RequestContext, settings Settings) bool {
	return s.Decide(rc, settings).Profile
}

// Decide applies the sampling policy. The first matching rule wins.
func (s *Sampler) Decide(rc RequestContext, settings Settings) Decision {
	// Rule 1: global kill switch.
	if settings.Disabled {
		return Decision{Reason: ReasonDisabled}
	}

	// Rule 2: admin pages, except AJAX calls routed through the admin.
	if (rc.Admin && !rc.AJAX) || (s.site.AdminPath != "" && strings.Contains(rc.Path, s.site.AdminPath)) {
		return Decision{Reason: ReasonAdmin}
	}

	// Rule 3: browser housekeeping and static files.
	for _, re := range s.ignored {
		if re.MatchString(rc.Path) {
			return Decision{Reason: ReasonStaticAsset}
		}
	}

	// Rule 4: command line.
	if rc.CLI {
		return Decision{Reason: ReasonCLI}
	}

	// Rule 5: AJAX and REST.
	if rc.AJAX {
		return Decision{Reason: ReasonAJAX}
	}
	if rc.REST {
		return Decision{Reason: ReasonREST}
	}

	// Rule 6: scheduled jobs.
	if rc.Cron {
		return Decision{Reason: ReasonCron}
	}

	// Rule 7: operator exclusion rules.
	if s.excluded(rc) {
		return Decision{Reason: ReasonExcludedRule}
	}

	// Rule 8: uniform draw in [1,100].
	rate := ClampSampleRate(settings.SampleRate)
	if s.draw() <= rate {
		return Decision{Profile: true, Reason: ReasonSampled}
	}
	return Decision{Reason: ReasonNotSampled}
}

func (s *Sampler) draw() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(100) + 1
}

func (s *Sampler) excluded(rc RequestContext) bool {
	if len(s.rules) == 0 {
		return false
	}
	vars := map[string]any{
		"path":       rc.Path,
		"method":     rc.Method,
		"user_agent": rc.UserAgent,
		"host":       rc.Host,
	}
	for _, r := range s.rules {
		out, _, err := r.prg.Eval(vars)
		if err != nil {
			continue
		}
		if matched, ok := out.Value().(bool); ok && matched {
			return true
		}
	}
	return false
}

func newRuleEnv() (*cel.Env, error) {
	env, err := cel.NewEnv(
		cel.Variable("path", cel.StringType),
		cel.Variable("method", cel.StringType),
		cel.Variable("user_agent", cel.StringType),
		cel.Variable("host", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rule environment: %w", err)
	}
	return env, nil
}

func compileRule(env *cel.Env, expr string) (cel.Program, error) {
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule: %w", iss.Err())
	}
	if !ast.OutputType().IsAssignableType(cel.BoolType) {
		return nil, fmt.Errorf("rule must evaluate to bool, got %s", ast.OutputType())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to build rule program: %w", err)
	}
	return prg, nil
}

// ValidateRule reports whether expr is a usable exclusion rule.
func ValidateRule(expr string) error {
	env, err := newRuleEnv()
	if err != nil {
		return err
	}
	_, err = compileRule(env, expr)
	return err
}
