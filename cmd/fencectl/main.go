package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ipfs/go-cid"

	"github.com/anuraag-khare/prompt-fence/cidutil"
	"github.com/anuraag-khare/prompt-fence/fence"
	"github.com/anuraag-khare/prompt-fence/keys"
	"github.com/anuraag-khare/prompt-fence/policy"
	"github.com/anuraag-khare/prompt-fence/prompt"
	"github.com/anuraag-khare/prompt-fence/storage"
	"github.com/anuraag-khare/prompt-fence/storage/grpccas"
	"github.com/anuraag-khare/prompt-fence/storage/localfs"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	switch args[0] {
	case "key":
		return cmdKey(args[1:], out, errOut)
	case "build":
		return cmdBuild(args[1:], out, errOut)
	case "validate":
		return cmdValidate(args[1:], out, errOut)
	case "validate-fence":
		return cmdValidateFence(args[1:], out, errOut)
	case "extract":
		return cmdExtract(args[1:], out, errOut)
	case "cid":
		return cmdCID(args[1:], out, errOut)
	case "archive":
		return cmdArchive(args[1:], out, errOut)
	case "policy":
		return cmdPolicy(args[1:], out, errOut)
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "fencectl: fence protocol CLI")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  fencectl key gen")
	fmt.Fprintln(w, "  fencectl key init --name <name> [--dir <dir>] [--force]")
	fmt.Fprintln(w, "  fencectl key derive --from <name> --role <role> [--dir <dir>] [--force]")
	fmt.Fprintln(w, "  fencectl key list [--dir <dir>]")
	fmt.Fprintln(w, "  fencectl key export --name <name> [--role <role>] [--dir <dir>]")
	fmt.Fprintln(w, "  fencectl build [--key <b64>] [--no-awareness] --trusted <text> --untrusted <text> --partial <text> --data <text> ...")
	fmt.Fprintln(w, "  fencectl validate [--key <b64>] [<file>]")
	fmt.Fprintln(w, "  fencectl validate-fence [--key <b64>] [<file>]")
	fmt.Fprintln(w, "  fencectl extract [<file>]")
	fmt.Fprintln(w, "  fencectl cid [<file>]")
	fmt.Fprintln(w, "  fencectl archive put|get (--dir <dir> | --addr <host:port>) [<file>|<cid>]")
	fmt.Fprintln(w, "  fencectl policy check --policy <file> [--key <b64>] [<file>]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - Keys are 32 raw bytes, base64-encoded")
	fmt.Fprintln(w, "  - --key falls back to PROMPT_FENCE_PRIVATE_KEY / PROMPT_FENCE_PUBLIC_KEY")
	fmt.Fprintln(w, "  - With no <file>, input is read from stdin")
}

func readInput(fs *flag.FlagSet) ([]byte, error) {
	if fs.NArg() > 0 {
		return os.ReadFile(fs.Arg(0))
	}
	return io.ReadAll(os.Stdin)
}

// segmentArg is one ordered builder append parsed from the command line.
type segmentArg struct {
	kind string
	text string
}

// segmentFlags records appends across several flag names in command-line
// order, so mixed --trusted/--untrusted flags build in the order given.
type segmentFlags struct {
	kind     string
	segments *[]segmentArg
}

func (f segmentFlags) String() string { return "" }

func (f segmentFlags) Set(text string) error {
	*f.segments = append(*f.segments, segmentArg{kind: f.kind, text: text})
	return nil
}

func cmdBuild(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var key string
	var noAwareness bool
	var segments []segmentArg

	fs.StringVar(&key, "key", "", "Base64 private key (default: PROMPT_FENCE_PRIVATE_KEY)")
	fs.BoolVar(&noAwareness, "no-awareness", false, "Omit the awareness preamble")
	fs.Var(segmentFlags{"trusted", &segments}, "trusted", "Append trusted instructions (repeatable)")
	fs.Var(segmentFlags{"untrusted", &segments}, "untrusted", "Append untrusted content (repeatable)")
	fs.Var(segmentFlags{"partial", &segments}, "partial", "Append partially-trusted content (repeatable)")
	fs.Var(segmentFlags{"data", &segments}, "data", "Append an untrusted data segment (repeatable)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if len(segments) == 0 {
		fmt.Fprintln(errOut, "no segments: pass --trusted/--untrusted/--partial/--data")
		return 2
	}

	if noAwareness {
		saved := fence.AwarenessInstructions()
		fence.SetAwarenessInstructions("")
		defer fence.SetAwarenessInstructions(saved)
	}

	b := prompt.NewBuilder()
	for _, s := range segments {
		switch s.kind {
		case "trusted":
			b.TrustedInstructions(s.text)
		case "untrusted":
			b.UntrustedContent(s.text)
		case "partial":
			b.PartiallyTrustedContent(s.text)
		case "data":
			b.DataSegment(s.text, fence.RatingUntrusted)
		}
	}
	p, err := b.Build(key)
	if err != nil {
		fmt.Fprintf(errOut, "build: %v\n", err)
		return 1
	}
	fmt.Fprintln(out, p.String())
	return 0
}

func cmdValidate(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var key string
	fs.StringVar(&key, "key", "", "Base64 public key (default: PROMPT_FENCE_PUBLIC_KEY)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	pub, err := keys.ResolvePublicKey(key)
	if err != nil {
		fmt.Fprintf(errOut, "validate: %v\n", err)
		return 2
	}
	text, err := readInput(fs)
	if err != nil {
		fmt.Fprintf(errOut, "read: %v\n", err)
		return 1
	}
	ok, err := fence.Validate(string(text), pub)
	if err != nil {
		fmt.Fprintf(errOut, "validate: %v\n", err)
		return 2
	}
	if !ok {
		fmt.Fprintln(out, "INVALID")
		return 1
	}
	fmt.Fprintln(out, "VALID")
	return 0
}

func cmdValidateFence(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("validate-fence", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var key string
	fs.StringVar(&key, "key", "", "Base64 public key (default: PROMPT_FENCE_PUBLIC_KEY)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	pub, err := keys.ResolvePublicKey(key)
	if err != nil {
		fmt.Fprintf(errOut, "validate-fence: %v\n", err)
		return 2
	}
	text, err := readInput(fs)
	if err != nil {
		fmt.Fprintf(errOut, "read: %v\n", err)
		return 1
	}
	r, err := fence.ValidateFence(strings.TrimSpace(string(text)), pub)
	if err != nil {
		fmt.Fprintf(errOut, "validate-fence: %v\n", err)
		return 2
	}
	fmt.Fprintf(out, "valid: %v\n", r.Valid)
	fmt.Fprintf(out, "type: %s\n", r.Type)
	fmt.Fprintf(out, "rating: %s\n", r.Rating)
	fmt.Fprintf(out, "source: %s\n", r.Source)
	if r.Err != nil {
		fmt.Fprintf(out, "reason: %v\n", r.Err)
	}
	if !r.Valid {
		return 1
	}
	fmt.Fprintf(out, "content: %s\n", r.Content)
	return 0
}

func cmdExtract(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("extract", flag.ContinueOnError)
	fs.SetOutput(errOut)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	text, err := readInput(fs)
	if err != nil {
		fmt.Fprintf(errOut, "read: %v\n", err)
		return 1
	}
	fences, err := fence.Extract(string(text))
	if err != nil {
		fmt.Fprintf(errOut, "extract: %v\n", err)
		return 1
	}
	for i, f := range fences {
		fmt.Fprintf(out, "[%d] type=%s rating=%s source=%s id=%s\n",
			i, f.Attrs["type"], f.Attrs["rating"], f.Attrs["source"], f.Attrs["id"])
		fmt.Fprintln(out, f.Content)
	}
	return 0
}

func cmdCID(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("cid", flag.ContinueOnError)
	fs.SetOutput(errOut)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	data, err := readInput(fs)
	if err != nil {
		fmt.Fprintf(errOut, "read: %v\n", err)
		return 1
	}
	fmt.Fprintln(out, cidutil.CIDv1RawSHA256(data))
	return 0
}

func openArchive(dir, addr string) (storage.CAS, func(), error) {
	switch {
	case dir != "":
		cas, err := localfs.New(dir)
		return cas, nil, err
	case addr != "":
		c, err := grpccas.Dial(addr, grpccas.DialOptions{})
		if err != nil {
			return nil, nil, err
		}
		return c, func() { _ = c.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("pass --dir or --addr")
	}
}

func cmdArchive(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: fencectl archive put|get (--dir <dir> | --addr <host:port>) [<file>|<cid>]")
		return 2
	}
	sub := args[0]

	fs := flag.NewFlagSet("archive "+sub, flag.ContinueOnError)
	fs.SetOutput(errOut)
	var dir, addr string
	fs.StringVar(&dir, "dir", "", "Local archive directory")
	fs.StringVar(&addr, "addr", "", "Remote archive address (fence-archived)")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}

	cas, closeFn, err := openArchive(dir, addr)
	if err != nil {
		fmt.Fprintf(errOut, "archive: %v\n", err)
		return 2
	}
	if closeFn != nil {
		defer closeFn()
	}
	arch := storage.Archive{CAS: cas}

	switch sub {
	case "put":
		text, err := readInput(fs)
		if err != nil {
			fmt.Fprintf(errOut, "read: %v\n", err)
			return 1
		}
		id, err := arch.Store(string(text))
		if err != nil {
			fmt.Fprintf(errOut, "archive put: %v\n", err)
			return 1
		}
		fmt.Fprintln(out, id.String())
		return 0
	case "get":
		if fs.NArg() == 0 {
			fmt.Fprintln(errOut, "missing <cid>")
			return 2
		}
		id, err := cid.Decode(fs.Arg(0))
		if err != nil {
			fmt.Fprintf(errOut, "invalid cid: %v\n", err)
			return 2
		}
		text, err := arch.Load(id)
		if err != nil {
			fmt.Fprintf(errOut, "archive get: %v\n", err)
			return 1
		}
		fmt.Fprintln(out, text)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown archive subcommand: %s\n", sub)
		return 2
	}
}

func cmdPolicy(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 || args[0] != "check" {
		fmt.Fprintln(errOut, "usage: fencectl policy check --policy <file> [--key <b64>] [<file>]")
		return 2
	}
	fs := flag.NewFlagSet("policy check", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var policyPath, key string
	fs.StringVar(&policyPath, "policy", "", "Trust policy file")
	fs.StringVar(&key, "key", "", "Base64 public key (default: PROMPT_FENCE_PUBLIC_KEY)")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}
	if policyPath == "" {
		fmt.Fprintln(errOut, "missing --policy")
		return 2
	}
	data, err := os.ReadFile(policyPath)
	if err != nil {
		fmt.Fprintf(errOut, "read policy: %v\n", err)
		return 1
	}
	pol, err := policy.Parse(data)
	if err != nil {
		fmt.Fprintf(errOut, "parse policy: %v\n", err)
		return 1
	}
	pub, err := keys.ResolvePublicKey(key)
	if err != nil {
		fmt.Fprintf(errOut, "policy check: %v\n", err)
		return 2
	}
	if !pol.AllowsKey(pub) {
		fmt.Fprintln(out, "DENIED: public key not in policy TRUST list")
		return 1
	}
	text, err := readInput(fs)
	if err != nil {
		fmt.Fprintf(errOut, "read: %v\n", err)
		return 1
	}
	results, err := fence.ValidateAll(string(text), pub)
	if err != nil {
		fmt.Fprintf(errOut, "policy check: %v\n", err)
		return 1
	}
	if err := policy.Evaluate(pol, results); err != nil {
		fmt.Fprintf(out, "DENIED: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "ALLOWED: %d fence(s) satisfy policy\n", len(results))
	return 0
}
