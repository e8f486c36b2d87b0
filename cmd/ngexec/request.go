package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/buildgrid/ngexec/internal/process"
)

// requestSpec is the yaml shape of a request file passed to `ngexec run`.
type requestSpec struct {
	Argv         []string          `yaml:"argv"`
	Env          map[string]string `yaml:"env"`
	OutputFiles  []string          `yaml:"outputFiles"`
	OutputDirs   []string          `yaml:"outputDirs"`
	Timeout      string            `yaml:"timeout"`
	Description  string            `yaml:"description"`
	JDKHome      string            `yaml:"jdkHome"`
	Platform     string            `yaml:"platform"`
	Nailgunnable bool              `yaml:"nailgunnable"`
}

func loadRequest(path string) (process.Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return process.Request{}, fmt.Errorf("reading request file: %w", err)
	}

	var spec requestSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return process.Request{}, fmt.Errorf("parsing request file: %w", err)
	}
	return spec.toRequest()
}

func (s requestSpec) toRequest() (process.Request, error) {
	if len(s.Argv) == 0 {
		return process.Request{}, fmt.Errorf("request file has no argv")
	}

	timeout := 15 * time.Minute
	if s.Timeout != "" {
		d, err := time.ParseDuration(s.Timeout)
		if err != nil {
			return process.Request{}, fmt.Errorf("invalid timeout %q: %w", s.Timeout, err)
		}
		timeout = d
	}

	desc := s.Description
	if desc == "" {
		desc = fmt.Sprintf("run %v", s.Argv)
	}

	return process.Request{
		Argv:         s.Argv,
		Env:          s.Env,
		InputFiles:   process.EmptyDigest,
		OutputFiles:  s.OutputFiles,
		OutputDirs:   s.OutputDirs,
		Timeout:      timeout,
		Description:  desc,
		JDKHome:      s.JDKHome,
		Platform:     s.Platform,
		Nailgunnable: s.Nailgunnable,
	}, nil
}
