package prompt

import (
	"bufio"
	"io/fs"
	"os"
	"strings"
)

// DefaultRulesFile is the conventional constraint-rules file name.
const DefaultRulesFile = ".simagent_rules"

// defaultRules is the built-in simulation rule set. One directive per line;
// users override it with their own rules file.
var defaultRules = []string{
	"Use params=struct() with scalar fields only and assert(isstruct(params),'Invalid struct') before use.",
	"Mandatory field checks with assert(isfield(params,...)) for every parameter read.",
	"Do not use Optimization, Parallel, or Symbolic Toolboxes; replace exprnd with -log(rand)/lambda, normrnd with mu + sigma*randn, ode15s with ode45 or manual Euler, hist with histcounts.",
	"Validate numeric inputs with assert(~isnan(x) && x > 0, 'Invalid: >0 required') before use.",
	"Preallocate ODE state arrays with zeros(N, states) and post-check assert(size(y,2) == numel(y0), 'State mismatch').",
	"Check time monotonicity with assert(all(diff(t) > 0), 't non-monotonic').",
	"Clear large arrays explicitly after use.",
	"Encapsulate the simulation in function main(params) and call it with default parameter values at the end of the script.",
	"Validate input size and type with assert or validateattributes before any array operation.",
	"Prefer explicit for-loops or logical indexing over arrayfun on matrices.",
	"English comments only; no explanations outside the code.",
}

// DefaultRules returns a copy of the built-in rule set.
func DefaultRules() []string {
	out := make([]string, len(defaultRules))
	copy(out, defaultRules)
	return out
}

// WriteDefaultRules materializes the built-in rule set at path so users can
// edit it. Existing files are overwritten.
func WriteDefaultRules(path string) error {
	var sb strings.Builder
	sb.WriteString("# simagent constraint rules. One directive per line, order is preserved.\n")
	for _, r := range defaultRules {
		sb.WriteString(r)
		sb.WriteString("\n")
	}
	return os.WriteFile(path, []byte(sb.String()), 0o644)
}

// LoadRules reads an ordered directive list from path: one rule per line,
// blank lines and '#' comments skipped, order preserved. A missing file
// yields the built-in defaults.
func LoadRules(fsys fs.FS, path string) ([]string, error) {
	f, err := fsys.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultRules(), nil
		}
		return nil, err
	}
	defer f.Close()

	var rules []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rules = append(rules, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return rules, nil
}
