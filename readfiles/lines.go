package readfiles

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"go.uber.org/multierr"

	"github.com/notargets/dfem/utils"
)

func getLine(reader *bufio.Reader) (line string, err error) {
	line, err = reader.ReadString('\n')
	if err != nil {
		if err == io.EOF && len(line) > 0 {
			return strings.TrimRight(line, "\r"), nil
		}
		if err == io.EOF {
			err = fmt.Errorf("early end of file")
		}
		return
	}
	line = strings.TrimRight(line[:len(line)-1], "\r") // Strip away the newline
	return
}

func skipLines(n int, reader *bufio.Reader) error {
	for i := 0; i < n; i++ {
		if _, err := getLine(reader); err != nil {
			return err
		}
	}
	return nil
}

// getLineNoComments skips lines starting with % and blank lines
func getLineNoComments(reader *bufio.Reader) (line string, err error) {
	for {
		if line, err = getLine(reader); err != nil {
			return
		}
		line = strings.TrimSpace(line)
		if len(line) != 0 && !strings.HasPrefix(line, "%") {
			return
		}
	}
}

// getToken returns what follows the = of a KEY= line, with the key.
func getToken(reader *bufio.Reader) (key, token string, err error) {
	line, err := getLineNoComments(reader)
	if err != nil {
		return
	}
	ind := strings.Index(line, "=")
	if ind < 0 {
		err = fmt.Errorf("badly formed input line [%s], should have an =", line)
		return
	}
	key, token = strings.TrimSpace(line[:ind]), strings.TrimSpace(line[ind+1:])
	return
}

func readLabel(reader *bufio.Reader, want string) (label string, err error) {
	key, token, err := getToken(reader)
	if err != nil {
		return
	}
	if key != want {
		return "", fmt.Errorf("expected %s, found [%s]", want, key)
	}
	if label = token; label == "" {
		err = fmt.Errorf("unable to read label from token: [%s]", token)
	}
	return
}

func readNumber(reader *bufio.Reader, want string) (num int, err error) {
	label, err := readLabel(reader, want)
	if err != nil {
		return
	}
	if num, err = strconv.Atoi(strings.Fields(label)[0]); err != nil {
		err = fmt.Errorf("unable to read number from token: [%s]", label)
	}
	return
}

// tokenReader reads whitespace separated values of the native formats.
type tokenReader struct {
	path string
	sc   *bufio.Scanner
}

func openTokens(path string) (*tokenReader, io.Closer, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, utils.InvalidFileNameError(path, err)
	}
	return newTokenReader(path, file), file, nil
}

func newTokenReader(path string, r io.Reader) *tokenReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	sc.Split(bufio.ScanWords)
	return &tokenReader{path: path, sc: sc}
}

func (tr *tokenReader) next() (string, error) {
	if !tr.sc.Scan() {
		if err := tr.sc.Err(); err != nil {
			return "", fmt.Errorf("reading %s: %w", tr.path, err)
		}
		return "", fmt.Errorf("reading %s: unexpected end of file", tr.path)
	}
	return tr.sc.Text(), nil
}

func (tr *tokenReader) nextInt() (int, error) {
	s, err := tr.next()
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", tr.path, err)
	}
	return v, nil
}

func (tr *tokenReader) nextFloat() (float64, error) {
	s, err := tr.next()
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", tr.path, err)
	}
	return v, nil
}

// createFile hands a buffered writer to fill and reports write and close
// errors together.
func createFile(path string, fill func(w *bufio.Writer) error) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return utils.InvalidFileNameError(path, err)
	}
	defer func() { err = multierr.Append(err, file.Close()) }()
	w := bufio.NewWriter(file)
	if err = fill(w); err != nil {
		return
	}
	return w.Flush()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
