package dockerfile

import (
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/moby/buildkit/frontend/dockerfile/parser"

	"github.com/cruciblehq/pybox/internal/fault"
	"github.com/cruciblehq/pybox/internal/manifest"
)

// Result of importing a Dockerfile.
type Result struct {
	Manifest *manifest.Manifest // Manifest reconstructed from the instructions.
	Warnings []error            // Problems that do not prevent the import.
}

// Import progress through the expected instruction order.
type phase int

const (
	phaseBase    phase = iota // Before the requirements copy.
	phaseInstall              // Requirements staged, awaiting install.
	phaseSetup                // Install seen, setup commands follow.
	phaseProject              // Project tree staged.
)

// Tracks import state across instructions.
type importer struct {
	m        *manifest.Manifest
	warnings []error
	phase    phase
	froms    int
	exposed  int  // Port from EXPOSE, zero if absent.
	bound    bool // Whether the launch argv set the port.
}

// Reads a Dockerfile into a manifest.
//
// The Dockerfile must follow the single-stage layout that [Render] writes:
// FROM, WORKDIR, a copy of the requirements file, RUN instructions for the
// install and setup, a copy of the whole context, EXPOSE, and CMD or
// ENTRYPOINT. ENV and LABEL may appear anywhere. Instructions outside that
// layout are skipped and reported as [ErrUnsupportedInstruction] warnings.
// The resulting manifest is validated before it is returned.
func Import(r io.Reader) (*Result, error) {
	res, err := parser.Parse(r)
	if err != nil {
		return nil, fault.Wrap(ErrParse, err)
	}

	im := &importer{m: manifest.Default()}
	for _, node := range res.AST.Children {
		if err := im.apply(node); err != nil {
			return nil, err
		}
	}

	if im.exposed != 0 && im.exposed != im.m.Port {
		im.warn(fault.Wrapf(manifest.ErrPortMismatch, "EXPOSE %d, %s=%d", im.exposed, manifest.PortOption, im.m.Port))
	}

	if err := im.m.Validate(); err != nil {
		return nil, err
	}

	return &Result{Manifest: im.m, Warnings: im.warnings}, nil
}

// Applies one instruction to the manifest.
func (im *importer) apply(node *parser.Node) error {
	args := nodeArgs(node)
	cmd := strings.ToLower(node.Value)

	switch cmd {
	case "from":
		im.froms++
		if im.froms > 1 {
			return fault.Wrapf(ErrUnsupportedInstruction, "line %d: multi-stage builds", node.StartLine)
		}
		if len(args) == 0 {
			return fault.Wrapf(ErrParse, "line %d: FROM without image", node.StartLine)
		}
		im.m.Base = args[0]

	case "workdir":
		if len(args) > 0 {
			im.m.Workdir = resolve(im.m.Workdir, args[0])
		}

	case "env":
		im.m.Env = addPairs(im.m.Env, args)

	case "label":
		im.m.Labels = addPairs(im.m.Labels, args)

	case "copy", "add":
		im.copy(node, args)

	case "run":
		im.run(node, args)

	case "expose":
		im.expose(node, args)

	case "cmd", "entrypoint":
		return im.launch(node, args)

	default:
		im.unsupported(node)
	}

	return nil
}

// Maps a copy onto the requirements or project staging directive.
func (im *importer) copy(node *parser.Node, args []string) {
	if len(node.Flags) > 0 || len(args) != 2 {
		im.unsupported(node)
		return
	}

	src := path.Clean(args[0])
	switch {
	case src == "." && im.phase >= phaseInstall:
		im.phase = phaseProject
	case src != "." && im.phase == phaseBase:
		im.m.Requirements = src
		im.phase = phaseInstall
	default:
		im.unsupported(node)
	}
}

// Maps a RUN onto the install command or a setup command.
func (im *importer) run(node *parser.Node, args []string) {
	command := strings.Join(args, " ")

	switch im.phase {
	case phaseInstall:
		if command != im.m.InstallCommand() {
			im.m.Install = command
		}
		im.phase = phaseSetup
	case phaseSetup:
		im.m.Setup = append(im.m.Setup, command)
	default:
		im.unsupported(node)
	}
}

// Records the declared port.
func (im *importer) expose(node *parser.Node, args []string) {
	if len(args) != 1 {
		im.unsupported(node)
		return
	}

	port, proto, _ := strings.Cut(args[0], "/")
	n, err := strconv.Atoi(port)
	if err != nil || (proto != "" && proto != "tcp") {
		im.unsupported(node)
		return
	}

	im.exposed = n
	if !im.bound {
		im.m.Port = n
	}
}

// Decomposes the launch argv into executable, target, options and args.
func (im *importer) launch(node *parser.Node, argv []string) error {
	if !node.Attributes["json"] && len(argv) == 1 {
		argv = strings.Fields(argv[0])
	}
	if len(argv) < 3 || argv[1] != "run" {
		return fault.Wrapf(ErrUnsupportedInstruction, "line %d: launch must be '<executable> run <target>'", node.StartLine)
	}

	im.m.Launch = manifest.Launch{Executable: argv[0], Target: argv[2]}

	rest := argv[3:]
	for i := 0; i < len(rest); i++ {
		opt, value, ok := splitOption(rest, &i)
		switch {
		case ok && opt == manifest.PortOption:
			n, err := strconv.Atoi(value)
			if err != nil {
				return fault.Wrapf(manifest.ErrInvalidManifest, "line %d: %s=%q", node.StartLine, opt, value)
			}
			im.m.Port = n
			im.bound = true
		case ok && opt == manifest.AddressOption:
			im.m.Address = value
		default:
			im.m.Launch.Args = append(im.m.Launch.Args, rest[i])
		}
	}

	return nil
}

func (im *importer) unsupported(node *parser.Node) {
	im.warn(fault.Wrapf(ErrUnsupportedInstruction, "line %d: %s", node.StartLine, node.Original))
}

func (im *importer) warn(err error) {
	im.warnings = append(im.warnings, err)
}

// Returns the instruction's arguments in order.
func nodeArgs(node *parser.Node) []string {
	var args []string
	for n := node.Next; n != nil; n = n.Next {
		args = append(args, n.Value)
	}
	return args
}

// Reads a port or address option at rest[*i], in either the "--opt=value"
// or the "--opt value" form. Advances *i past a separate value.
func splitOption(rest []string, i *int) (string, string, bool) {
	arg := rest[*i]
	for _, opt := range []string{manifest.PortOption, manifest.AddressOption} {
		if v, ok := strings.CutPrefix(arg, opt+"="); ok {
			return opt, v, true
		}
		if arg == opt && *i+1 < len(rest) {
			*i++
			return opt, rest[*i], true
		}
	}
	return "", "", false
}

// Adds key/value pairs, unquoting values the way the Dockerfile shell does
// for simple quoted words.
func addPairs(dst map[string]string, args []string) map[string]string {
	if dst == nil {
		dst = make(map[string]string)
	}
	for i := 0; i+1 < len(args); i += 2 {
		dst[args[i]] = unquote(args[i+1])
	}
	return dst
}

func unquote(s string) string {
	if len(s) < 2 {
		return unescapeDollar(s)
	}
	switch {
	case s[0] == '"' && s[len(s)-1] == '"':
		s = unescapeDollar(s)
		if v, err := strconv.Unquote(s); err == nil {
			return v
		}
		return s[1 : len(s)-1]
	case s[0] == '\'' && s[len(s)-1] == '\'':
		return s[1 : len(s)-1]
	}
	return unescapeDollar(s)
}

// Drops the backslash from escaped dollar signs, leaving other escape
// sequences intact.
func unescapeDollar(s string) string {
	if !strings.Contains(s, `\$`) {
		return s
	}

	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			if s[i+1] != '$' {
				b.WriteByte('\\')
			}
			b.WriteByte(s[i+1])
			i++
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// Resolves a WORKDIR argument against the current working directory.
func resolve(cur, dir string) string {
	if path.IsAbs(dir) {
		return path.Clean(dir)
	}
	return path.Join(cur, dir)
}
