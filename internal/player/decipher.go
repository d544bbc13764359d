package player

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/dop251/goja"
)

// Decipherer recovers stream parameters from one player JS build: the
// signature scramble is undone with parsed byte operations, the
// n-throttling transform by evaluating the extracted function in goja.
type Decipherer struct {
	jsBody []byte

	opsOnce sync.Once
	ops     []decipherOp
	opsErr  error

	nOnce  sync.Once
	nFunc  string
	nErr   error
	evalMu sync.Mutex
}

// NewDecipherer parses lazily; construction never fails.
func NewDecipherer(jsBody string) *Decipherer {
	return &Decipherer{jsBody: []byte(jsBody)}
}

type decipherOp func([]byte) []byte

const (
	jsVar      = `[a-zA-Z_\$][a-zA-Z_0-9]*`
	reverseDef = `:function\(a\)\{(?:return )?a\.reverse\(\)\}`
	spliceDef  = `:function\(a,b\)\{a\.splice\(0,b\)\}`
	swapDef    = `:function\(a,b\)\{var c=a\[0\];a\[0\]=a\[b(?:%a\.length)?\];a\[b(?:%a\.length)?\]=c(?:;return a)?\}`
)

var (
	actionsObjPattern = regexp.MustCompile(fmt.Sprintf(
		`(?:var|let|const)\s+(%s)=\{((?:(?:%s%s|%s%s|%s%s),?\n?)+)\}\s*;?`,
		jsVar, jsVar, swapDef, jsVar, spliceDef, jsVar, reverseDef))
	reversePattern = regexp.MustCompile(fmt.Sprintf(`(?m)(?:^|,)(%s)%s`, jsVar, reverseDef))
	splicePattern  = regexp.MustCompile(fmt.Sprintf(`(?m)(?:^|,)(%s)%s`, jsVar, spliceDef))
	swapPattern    = regexp.MustCompile(fmt.Sprintf(`(?m)(?:^|,)(%s)%s`, jsVar, swapDef))

	actionsFuncPatterns = []*regexp.Regexp{
		regexp.MustCompile(fmt.Sprintf(
			`function(?:\s+%s)?\(a\)\{a=a\.split\([^\)]*\);\s*((?:(?:a=)?%s(?:\.%s|\[[^\]]+\])\(a,\d+\);?\s*)+)return a\.join\([^\)]*\)\}`,
			jsVar, jsVar, jsVar)),
		regexp.MustCompile(fmt.Sprintf(
			`%s\s*=\s*function\(a\)\{a=a\.split\([^\)]*\);\s*((?:(?:a=)?%s(?:\.%s|\[[^\]]+\])\(a,\d+\);?\s*)+)return a\.join\([^\)]*\)\}`,
			jsVar, jsVar, jsVar)),
	}

	nNamePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\.get\("n"\)\)&&\(b=([a-zA-Z0-9$]{0,3})\[(\d+)\](.+)\|\|([a-zA-Z0-9]{0,3})`),
		regexp.MustCompile(`\.get\("n"\)\)\s*&&\s*\(b=([a-zA-Z0-9$]{1,})\[(\d+)\]\([a-zA-Z0-9$]{1,}\).+\|\|([a-zA-Z0-9$]{1,})`),
		regexp.MustCompile(`\.get\("n"\)\)\s*&&\s*\(b=([a-zA-Z0-9$]{1,})\([a-zA-Z0-9$]{1,}\)`),
	}
)

// DecipherSignature undoes the signature scramble on s.
func (d *Decipherer) DecipherSignature(s string) (string, error) {
	d.opsOnce.Do(func() {
		d.ops, d.opsErr = d.parseOps()
	})
	if d.opsErr != nil {
		return "", d.opsErr
	}
	bs := []byte(s)
	for _, op := range d.ops {
		bs = op(bs)
	}
	return string(bs), nil
}

// DecipherN evaluates the n transform function on n.
func (d *Decipherer) DecipherN(n string) (string, error) {
	d.nOnce.Do(func() {
		d.nFunc, d.nErr = d.extractNFunction()
	})
	if d.nErr != nil {
		return "", d.nErr
	}

	d.evalMu.Lock()
	defer d.evalMu.Unlock()

	const name = "tubefetchNFunc"
	vm := goja.New()
	if _, err := vm.RunString(name + "=" + d.nFunc); err != nil {
		return "", err
	}
	var fn func(string) string
	if err := vm.ExportTo(vm.Get(name), &fn); err != nil {
		return "", err
	}
	return fn(n), nil
}

func (d *Decipherer) parseOps() ([]decipherOp, error) {
	objMatch := actionsObjPattern.FindSubmatch(d.jsBody)
	funcBody := d.actionsFuncBody()
	if len(objMatch) < 3 || len(funcBody) == 0 {
		return nil, errors.New("signature actions not found in player js")
	}

	obj := objMatch[1]
	objBody := objMatch[2]

	var reverseKey, spliceKey, swapKey string
	if m := reversePattern.FindSubmatch(objBody); len(m) > 1 {
		reverseKey = string(m[1])
	}
	if m := splicePattern.FindSubmatch(objBody); len(m) > 1 {
		spliceKey = string(m[1])
	}
	if m := swapPattern.FindSubmatch(objBody); len(m) > 1 {
		swapKey = string(m[1])
	}

	callPattern, err := regexp.Compile(fmt.Sprintf(
		`(?:a=)?%s(?:\.(%s|%s|%s)|\[(?:"(%s|%s|%s)"|'(%s|%s|%s)')\])\(a,(\d+)\)`,
		regexp.QuoteMeta(string(obj)),
		regexp.QuoteMeta(reverseKey), regexp.QuoteMeta(spliceKey), regexp.QuoteMeta(swapKey),
		regexp.QuoteMeta(reverseKey), regexp.QuoteMeta(spliceKey), regexp.QuoteMeta(swapKey),
		regexp.QuoteMeta(reverseKey), regexp.QuoteMeta(spliceKey), regexp.QuoteMeta(swapKey),
	))
	if err != nil {
		return nil, err
	}

	var ops []decipherOp
	for _, m := range callPattern.FindAllSubmatch(funcBody, -1) {
		if len(m) < 5 {
			continue
		}
		key := firstNonEmpty(m[1], m[2], m[3])
		arg, _ := strconv.Atoi(string(m[4]))
		switch key {
		case reverseKey:
			ops = append(ops, reverseOp)
		case swapKey:
			ops = append(ops, swapOp(arg))
		case spliceKey:
			ops = append(ops, spliceOp(arg))
		}
	}
	if len(ops) == 0 {
		return nil, errors.New("empty signature operation list")
	}
	return ops, nil
}

func (d *Decipherer) actionsFuncBody() []byte {
	for _, re := range actionsFuncPatterns {
		if m := re.FindSubmatch(d.jsBody); len(m) > 1 {
			return m[1]
		}
	}
	return nil
}

func (d *Decipherer) extractNFunction() (string, error) {
	for _, re := range nNamePatterns {
		m := re.FindSubmatch(d.jsBody)
		if len(m) == 0 {
			continue
		}
		switch len(m) {
		case 5:
			if idx, err := strconv.Atoi(string(m[2])); err == nil && idx == 0 {
				return d.functionBody(string(m[4]))
			}
			return d.functionBody(string(m[1]))
		case 4:
			if idx, err := strconv.Atoi(string(m[2])); err == nil && idx == 0 {
				return d.functionBody(string(m[3]))
			}
			return d.functionBody(string(m[1]))
		default:
			return d.functionBody(string(m[1]))
		}
	}
	return "", errors.New("n-function name not found in player js")
}

// functionBody slices the full definition of name out of the JS body,
// balancing braces and skipping string literals.
func (d *Decipherer) functionBody(name string) (string, error) {
	name = strings.TrimSpace(name)
	start := -1
	for _, def := range []string{name + "=function(", name + " = function(", "function " + name + "("} {
		if start = bytes.Index(d.jsBody, []byte(def)); start >= 0 {
			break
		}
	}
	if start < 0 {
		return "", fmt.Errorf("n-function %q body not found", name)
	}

	pos := start + bytes.IndexByte(d.jsBody[start:], '{') + 1
	var strChar byte
	for depth := 1; depth > 0; pos++ {
		if pos >= len(d.jsBody) {
			return "", errors.New("unterminated n-function body")
		}
		b := d.jsBody[pos]
		switch b {
		case '{':
			if strChar == 0 {
				depth++
			}
		case '}':
			if strChar == 0 {
				depth--
			}
		case '`', '"', '\'':
			if pos > 1 && d.jsBody[pos-1] == '\\' && d.jsBody[pos-2] != '\\' {
				continue
			}
			if strChar == 0 {
				strChar = b
			} else if strChar == b {
				strChar = 0
			}
		}
	}
	return string(d.jsBody[start:pos]), nil
}

func spliceOp(pos int) decipherOp {
	return func(bs []byte) []byte {
		if pos < 0 || pos > len(bs) {
			return bs
		}
		return bs[pos:]
	}
}

func swapOp(arg int) decipherOp {
	return func(bs []byte) []byte {
		if len(bs) == 0 {
			return bs
		}
		pos := arg % len(bs)
		bs[0], bs[pos] = bs[pos], bs[0]
		return bs
	}
}

func reverseOp(bs []byte) []byte {
	for l, r := 0, len(bs)-1; l < r; l, r = l+1, r-1 {
		bs[l], bs[r] = bs[r], bs[l]
	}
	return bs
}

func firstNonEmpty(groups ...[]byte) string {
	for _, g := range groups {
		if len(g) > 0 {
			return string(g)
		}
	}
	return ""
}
