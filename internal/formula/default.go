package formula

// DefaultFeaturePattern matches the array builtin's confirmation line once
// ANSI colors are stripped.
const DefaultFeaturePattern = `Array\s+test\s+created with\s+3\s+elements`

// Default returns the built-in formula for the current Leizi release.
func Default() *Formula {
	return &Formula{
		Name:     "leizi",
		Desc:     "Modern POSIX-compatible shell with ZSH-style arrays and beautiful prompts",
		Homepage: "https://github.com/Zixiao-System/leizi-shell",
		Version:  "1.4.0",
		License:  "GPL-3.0",
		URL:      "https://github.com/Zixiao-System/leizi-shell/archive/v1.4.0.tar.gz",
		Head: Head{
			URL:    "https://github.com/Zixiao-System/leizi-shell.git",
			Branch: "main",
		},
		Depends: Depends{
			Build:   []string{"cmake"},
			Runtime: []string{"readline"},
		},
		Build:  BuildSpec{Type: BuildTypeRelease},
		Binary: "leizi",
		Caveats: CaveatSpec{
			ConfigPath: "~/.config/leizi/config",
			DocsURL:    "https://github.com/Zixiao-System/leizi-shell/blob/main/README.md",
		},
		Tests: DefaultTests(),
	}
}

// DefaultTests returns the three release checks.
func DefaultTests() []TestSpec {
	return []TestSpec{
		{Name: "version", Kind: KindVersion, Args: []string{"--version"}, Expect: "Leizi Shell"},
		{Name: "execution", Kind: KindExecution, Input: "echo hello\nexit\n", Expect: "hello"},
		{Name: "array", Kind: KindFeature, Input: "array test=(1 2 3)\nexit\n", Expect: DefaultFeaturePattern, Regex: true},
	}
}
