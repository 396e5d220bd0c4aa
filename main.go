package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/logrusorgru/aurora"
)

func removeExtension(filePath string) string {
	extension := filepath.Ext(filePath)
	return filePath[:len(filePath)-len(extension)]
}

func getClassName(filePath string) string {
	return removeExtension(filepath.Base(filePath))
}

func getOutputPath(filePath string, format OutputFormat) string {
	return removeExtension(filePath) + format.extension()
}

// collectFiles resolves the command line path to the Jack files it names: the
// file itself, or every .jack file directly inside a directory.
func collectFiles(fileOrDir string) (files []string, err error) {
	fileOrDirStat, err := os.Stat(fileOrDir)
	if err != nil {
		err = fmt.Errorf("cannot stat file/dir %q: %w", fileOrDir, err)
		return
	}

	if !fileOrDirStat.IsDir() {
		return []string{fileOrDir}, nil
	}

	dirEntries, err := os.ReadDir(fileOrDir)
	if err != nil {
		err = fmt.Errorf("could not open directory %q: %w", fileOrDir, err)
		return
	}
	for _, entry := range dirEntries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".jack" {
			continue
		}
		files = append(files, filepath.Join(fileOrDir, entry.Name()))
	}
	if len(files) == 0 {
		err = fmt.Errorf("no .jack files in directory %q", fileOrDir)
	}
	return
}

// writeResults stores every successful output, either next to its source or
// on the debug stream, and reports how many files failed.
func writeResults(results []compileResult, debug io.Writer, au aurora.Aurora) (failed int) {
	for _, result := range results {
		if result.err != nil {
			failed++
			log.Printf("%s %s: %v", au.Red("FAILED"), au.Cyan(result.path), result.err)
			continue
		}

		if debug != nil {
			_, err := fmt.Fprintf(debug, "// %s\n", getClassName(result.path))
			if err == nil {
				_, err = debug.Write(result.output)
			}
			if err != nil {
				failed++
				log.Printf("%s %s: %v", au.Red("FAILED"), au.Cyan(result.path), err)
			}
			continue
		}

		if err := os.WriteFile(result.outputPath, result.output, 0644); err != nil {
			failed++
			log.Printf("%s could not write %q: %v", au.Red("FAILED"), result.outputPath, err)
			continue
		}
		log.Printf("%s %s -> %s", au.Green("compiled"), au.Cyan(result.path), result.outputPath)
	}
	return failed
}

func run(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("jackc", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.Usage = func() {
		fmt.Fprintln(stderr, "usage: jackc [flags] <file.jack | directory>")
		flags.PrintDefaults()
	}

	parseTree := flags.Bool("xml", false, "write the parse tree as markup (Foo.xml) instead of VM code")
	tokens := flags.Bool("tokens", false, "write the token list as markup (FooT.xml) instead of VM code")
	toStdout := flags.Bool("stdout", false, "write every output to stdout instead of files")
	trace := flags.Bool("trace", false, "log the grammar rules entered to stderr")
	jobs := flags.Int("j", runtime.NumCPU(), "number of files compiled in parallel")
	noColor := flags.Bool("no-color", false, "disable coloured log output")

	if err := flags.Parse(args); err != nil {
		return 2
	}
	if flags.NArg() != 1 || (*parseTree && *tokens) {
		flags.Usage()
		return 2
	}

	log.SetOutput(stderr)
	log.SetFlags(0)
	au := aurora.NewAurora(!*noColor)

	options := compileOptions{format: VMFormat}
	switch {
	case *parseTree:
		options.format = ParseTreeFormat
	case *tokens:
		options.format = TokenFormat
	}
	if *trace {
		options.trace = stderr
		// Keep the trace of one file in one piece.
		*jobs = 1
	}

	files, err := collectFiles(flags.Arg(0))
	if err != nil {
		log.Println(au.Red(err.Error()))
		return 1
	}
	log.Printf("Compiling %d file(s): %s", len(files), au.Cyan(strings.Join(files, ", ")))

	var debug io.Writer
	if *toStdout {
		debug = stdout
	}
	if failed := writeResults(compileAll(files, options, *jobs), debug, au); failed > 0 {
		log.Printf("%s", au.Red(fmt.Sprintf("%d of %d file(s) failed", failed, len(files))))
		return 1
	}
	return 0
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
