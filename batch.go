package main

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"golang.org/x/sync/errgroup"
)

type OutputFormat int

const (
	VMFormat OutputFormat = iota
	ParseTreeFormat
	TokenFormat
)

func (f OutputFormat) extension() string {
	switch f {
	case ParseTreeFormat:
		return ".xml"
	case TokenFormat:
		return "T.xml"
	}
	return ".vm"
}

type compileOptions struct {
	format OutputFormat
	// trace receives the grammar rule trace when set.
	trace io.Writer
}

type compileResult struct {
	path       string
	outputPath string
	output     []byte
	err        error
}

// compileSource compiles one class entirely in memory.
func compileSource(filename string, r io.Reader, options compileOptions) ([]byte, error) {
	tokens, err := Tokenize(filename, r)
	if err != nil {
		return nil, err
	}

	var output bytes.Buffer
	if options.format == TokenFormat {
		if err := WriteTokenMarkup(&output, tokens); err != nil {
			return nil, err
		}
		return output.Bytes(), nil
	}

	compiler := NewJackCompiler(tokens)
	if options.trace != nil {
		compiler.SetTrace(options.trace)
	}
	if options.format == ParseTreeFormat {
		err = compiler.CompileMarkup(&output)
	} else {
		err = compiler.Compile(&output)
	}
	if err != nil {
		return nil, err
	}
	return output.Bytes(), nil
}

func compileFile(path string, options compileOptions) compileResult {
	result := compileResult{path: path, outputPath: getOutputPath(path, options.format)}

	handle, err := os.Open(path)
	if err != nil {
		result.err = fmt.Errorf("could not open file %q for reading: %w", path, err)
		return result
	}
	defer handle.Close()

	result.output, result.err = compileSource(path, handle, options)
	return result
}

// compileAll compiles every file with at most jobs files in flight. A
// failing file never stops the others. Results keep the order of paths.
func compileAll(paths []string, options compileOptions, jobs int) []compileResult {
	results := make([]compileResult, len(paths))

	var group errgroup.Group
	if jobs > 0 {
		group.SetLimit(jobs)
	}
	for i, path := range paths {
		i, path := i, path
		group.Go(func() error {
			results[i] = compileFile(path, options)
			return nil
		})
	}
	group.Wait()

	return results
}
