package main

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/anuraag-khare/prompt-fence/fence"
	"github.com/anuraag-khare/prompt-fence/keys"
)

func cmdKey(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printKeyUsage(errOut)
		return 2
	}
	switch args[0] {
	case "gen":
		return cmdKeyGen(args[1:], out, errOut)
	case "init":
		return cmdKeyInit(args[1:], out, errOut)
	case "derive":
		return cmdKeyDerive(args[1:], out, errOut)
	case "list":
		return cmdKeyList(args[1:], out, errOut)
	case "export":
		return cmdKeyExport(args[1:], out, errOut)
	case "help", "-h", "--help":
		printKeyUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown key subcommand: %s\n\n", args[0])
		printKeyUsage(errOut)
		return 2
	}
}

func printKeyUsage(w io.Writer) {
	fmt.Fprintln(w, "fencectl key: minimal local key management")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  fencectl key gen")
	fmt.Fprintln(w, "  fencectl key init --name <name> [--dir <dir>] [--force]")
	fmt.Fprintln(w, "  fencectl key derive --from <name> --role <role> [--dir <dir>] [--force]")
	fmt.Fprintln(w, "  fencectl key list [--dir <dir>]")
	fmt.Fprintln(w, "  fencectl key export --name <name> [--role <role>] [--dir <dir>]")
}

func cmdKeyGen(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("key gen", flag.ContinueOnError)
	fs.SetOutput(errOut)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	priv, pub, err := fence.GenerateKeypair()
	if err != nil {
		fmt.Fprintf(errOut, "keygen: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "private: %s\n", priv)
	fmt.Fprintf(out, "public:  %s\n", pub)
	return 0
}

func cmdKeyInit(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("key init", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var name, dir string
	var force bool
	fs.StringVar(&name, "name", "", "Key name (directory under the keystore)")
	fs.StringVar(&dir, "dir", "", "Keystore directory (default: ~/.prompt-fence/keys)")
	fs.BoolVar(&force, "force", false, "Overwrite existing key files")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if name == "" {
		fmt.Fprintln(errOut, "missing --name")
		return 2
	}
	ks, err := keys.Open(dir)
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return 1
	}
	_, pub, err := ks.Generate(name, force)
	if err != nil {
		fmt.Fprintf(errOut, "write key: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "Created key %s\n", name)
	fmt.Fprintf(out, "public: %s\n", pub)
	return 0
}

func cmdKeyDerive(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("key derive", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var from, role, dir string
	var force bool
	fs.StringVar(&from, "from", "", "Root key name")
	fs.StringVar(&role, "role", "", "Role identifier (e.g. builder, auditor)")
	fs.StringVar(&dir, "dir", "", "Keystore directory (default: ~/.prompt-fence/keys)")
	fs.BoolVar(&force, "force", false, "Overwrite existing key files")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if from == "" {
		fmt.Fprintln(errOut, "missing --from")
		return 2
	}
	if role == "" {
		fmt.Fprintln(errOut, "missing --role")
		return 2
	}
	ks, err := keys.Open(dir)
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return 1
	}
	_, pub, err := ks.DeriveRole(from, role, force)
	if err != nil {
		fmt.Fprintf(errOut, "derive: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "Derived %s/%s\n", from, role)
	fmt.Fprintf(out, "public: %s\n", pub)
	return 0
}

func cmdKeyList(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("key list", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var dir string
	fs.StringVar(&dir, "dir", "", "Keystore directory (default: ~/.prompt-fence/keys)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	ks, err := keys.Open(dir)
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return 1
	}
	entries, err := ks.List()
	if err != nil {
		fmt.Fprintf(errOut, "list: %v\n", err)
		return 1
	}
	for _, e := range entries {
		if len(e.Roles) == 0 {
			fmt.Fprintln(out, e.Name)
			continue
		}
		fmt.Fprintf(out, "%s (roles: %s)\n", e.Name, strings.Join(e.Roles, ", "))
	}
	return 0
}

func cmdKeyExport(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("key export", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var name, role, dir string
	fs.StringVar(&name, "name", "", "Key name")
	fs.StringVar(&role, "role", "", "Optional role subkey")
	fs.StringVar(&dir, "dir", "", "Keystore directory (default: ~/.prompt-fence/keys)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if name == "" {
		fmt.Fprintln(errOut, "missing --name")
		return 2
	}
	ks, err := keys.Open(dir)
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return 1
	}
	priv, pub, err := ks.Export(name, role)
	if err != nil {
		fmt.Fprintf(errOut, "export: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "private: %s\n", priv)
	fmt.Fprintf(out, "public:  %s\n", pub)
	return 0
}
