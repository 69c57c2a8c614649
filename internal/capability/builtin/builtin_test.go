package builtin

import (
	"context"
	"errors"
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/scriptbox/internal/capability"
)

type syncScope struct {
	vm *goja.Runtime
}

func (s *syncScope) Context() context.Context { return context.Background() }
func (s *syncScope) Runtime() *goja.Runtime   { return s.vm }
func (s *syncScope) Async(fn func(ctx context.Context) (any, error)) goja.Value {
	p, resolve, reject := s.vm.NewPromise()
	v, err := fn(context.Background())
	if err != nil {
		_ = reject(s.vm.NewGoError(err))
	} else {
		_ = resolve(s.vm.ToValue(v))
	}
	return s.vm.ToValue(p)
}

type fakeNotifier struct {
	notices []string
	answer  string
	confirm bool
	err     error
}

func (f *fakeNotifier) Notify(_ context.Context, level, message string) error {
	f.notices = append(f.notices, level+":"+message)
	return nil
}

func (f *fakeNotifier) Confirm(context.Context, string, string) (bool, error) {
	return f.confirm, f.err
}

func (f *fakeNotifier) Prompt(context.Context, string, string) (string, error) {
	return f.answer, f.err
}

func setup(t *testing.T, n Notifier) *goja.Runtime {
	t.Helper()

	reg := capability.NewRegistry()
	require.NoError(t, Register(reg, Deps{Notifier: n}))

	vm := goja.New()
	surface, err := capability.Build(&syncScope{vm: vm}, reg, capability.Options{Frozen: true})
	require.NoError(t, err)
	require.NoError(t, vm.Set("api", surface))
	return vm
}

func eval(t *testing.T, vm *goja.Runtime, src string) goja.Value {
	t.Helper()
	v, err := vm.RunString(src)
	require.NoError(t, err, src)
	return v
}

func TestRegisterInstallsAllGroups(t *testing.T) {
	reg := capability.NewRegistry()
	require.NoError(t, Register(reg, Deps{}))

	assert.Equal(t, []string{CryptoGroup, DOMGroup, PathGroup, StringsGroup, TransformGroup, UIGroup}, reg.Names())
	assert.Error(t, Register(reg, Deps{}), "second registration collides")
}

func TestPath(t *testing.T) {
	vm := setup(t, nil)

	tests := []struct {
		src  string
		want any
	}{
		{`api.path.join("a", "b", "../c")`, "a/c"},
		{`api.path.normalize("/a//b/./c/")`, "/a/b/c"},
		{`api.path.dirname("/a/b/c.txt")`, "/a/b"},
		{`api.path.basename("/a/b/c.txt")`, "c.txt"},
		{`api.path.basename("/a/b/c.txt", ".txt")`, "c"},
		{`api.path.extname("c.tar.gz")`, ".gz"},
		{`api.path.isAbsolute("/x")`, true},
		{`api.path.relative("/a/b", "/a/c/d")`, "../c/d"},
		{`api.path.match("src/**/*.go", "src/a/b/main.go")`, true},
		{`api.path.match("*.go", "dir/main.go")`, false},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			assert.Equal(t, tt.want, eval(t, vm, tt.src).Export())
		})
	}
}

func TestPathMatchRejectsBadPattern(t *testing.T) {
	vm := setup(t, nil)
	_, err := vm.RunString(`api.path.match("[", "x")`)
	assert.Error(t, err)
}

func TestCrypto(t *testing.T) {
	vm := setup(t, nil)

	assert.Equal(t,
		"2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
		eval(t, vm, `api.crypto.sha256("hello")`).String())

	assert.True(t, eval(t, vm, `
		const token = api.crypto.encrypt("secret message", "pw");
		token.startsWith("enc:v1:") && api.crypto.decrypt(token, "pw") === "secret message"
	`).ToBoolean())

	_, err := vm.RunString(`api.crypto.decrypt(api.crypto.encrypt("x", "pw"), "wrong")`)
	assert.Error(t, err)

	assert.True(t, eval(t, vm, `
		const h = api.crypto.hashPassword("hunter2");
		api.crypto.verifyPassword(h, "hunter2") && !api.crypto.verifyPassword(h, "nope")
	`).ToBoolean())

	assert.Len(t, eval(t, vm, `api.crypto.uuid()`).String(), 36)
}

func TestStrings(t *testing.T) {
	vm := setup(t, nil)

	tests := []struct {
		src  string
		want string
	}{
		{`api.strings.upper("straße")`, "STRASSE"},
		{`api.strings.lower("ÀB")`, "àb"},
		{`api.strings.title("hello world")`, "Hello World"},
		{`api.strings.stripAccents("Crème Brûlée")`, "Creme Brulee"},
		{`api.strings.slug("  Hello, Wörld! ")`, "hello-world"},
		{`api.strings.truncate("hello world", 8)`, "hello..."},
		{`api.strings.truncate("short", 8)`, "short"},
		{`api.strings.normalize("é", "NFC")`, "é"},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			assert.Equal(t, tt.want, eval(t, vm, tt.src).String())
		})
	}

	_, err := vm.RunString(`api.strings.normalize("x", "NFX")`)
	assert.Error(t, err)
}

func TestDOMRender(t *testing.T) {
	vm := setup(t, nil)

	out := eval(t, vm, `
		const d = api.dom;
		d.render(d.el("p", {title: "greeting"}, "hi ", d.el("b", null, "there")))
	`).String()
	assert.Equal(t, `<p title="greeting">hi <b>there</b></p>`, out)

	out = eval(t, vm, `api.dom.render(api.dom.list(["a", "b"], true))`).String()
	assert.Equal(t, `<ol><li>a</li><li>b</li></ol>`, out)

	out = eval(t, vm, `api.dom.render(api.dom.el("div", null, api.dom.el("script", null, "alert(1)"), "ok"))`).String()
	assert.Equal(t, `<div>ok</div>`, out, "unsafe markup is sanitized")

	_, err := vm.RunString(`api.dom.el("<img>", null)`)
	assert.Error(t, err)
}

func TestDOMQueries(t *testing.T) {
	vm := setup(t, nil)
	doc := `"<ul><li class='x'>a</li><li>b</li></ul><p> some   text </p>"`

	assert.Equal(t, []string{"a", "b"}, eval(t, vm, `api.dom.select(`+doc+`, "li")`).Export())
	assert.Equal(t, []string{"a"}, eval(t, vm, `api.dom.xpath(`+doc+`, "//li[@class='x']")`).Export())
	assert.Equal(t, "ab some text", eval(t, vm, `api.dom.text(`+doc+`)`).String())
	assert.Equal(t, "<b>x</b>", eval(t, vm, `api.dom.sanitize("<b onclick='evil()'>x</b>")`).String())
}

func TestTransformFormats(t *testing.T) {
	vm := setup(t, nil)

	assert.True(t, eval(t, vm, `
		const t = api.transform;
		const j = t.json.parse('{"a":[1,2],"b":{"c":true}}');
		j.a[1] === 2 && j.b.c === true && Array.isArray(j.a)
	`).ToBoolean())
	assert.Equal(t, `{"a":1,"b":[true,null]}`, eval(t, vm, `api.transform.json.stringify({b: [true, null], a: 1})`).String())

	assert.Equal(t, "y", eval(t, vm, `api.transform.yaml.parse("a: 1\nb: [x, y]\n").b[1]`).String())
	assert.Contains(t, eval(t, vm, `api.transform.yaml.stringify({name: "n"})`).String(), "name: n")

	assert.Equal(t, int64(8080), eval(t, vm, `api.transform.toml.parse("[server]\nport = 8080\n").server.port`).Export())
	assert.Regexp(t, `a = ['"]b['"]`, eval(t, vm, `api.transform.toml.stringify({a: "b"})`).String())
	_, err := vm.RunString(`api.transform.toml.stringify([1])`)
	assert.Error(t, err)

	_, err = vm.RunString(`api.transform.json.parse("{")`)
	assert.Error(t, err)
}

func TestTransformCSV(t *testing.T) {
	vm := setup(t, nil)

	assert.Equal(t, "1", eval(t, vm, `api.transform.csv.parse("n,v\na,1\n")[0].v`).String())
	assert.Equal(t, "v", eval(t, vm, `api.transform.csv.parse("n,v\na,1\n", false)[0][1]`).String())
	assert.Equal(t, "n,v\na,1\n", eval(t, vm, `api.transform.csv.stringify([{v: 1, n: "a"}])`).String())
	assert.Equal(t, "x,y\n", eval(t, vm, `api.transform.csv.stringify([["x", "y"]])`).String())
}

func TestTransformStatsAndMime(t *testing.T) {
	vm := setup(t, nil)

	assert.Equal(t, float64(2), eval(t, vm, `api.transform.stats.mean([1, 2, 3])`).ToFloat())
	assert.Equal(t, float64(6), eval(t, vm, `api.transform.stats.sum([1, 2, 3])`).ToFloat())
	assert.Equal(t, float64(3), eval(t, vm, `api.transform.stats.max([1, 3, 2])`).ToFloat())
	assert.InDelta(t, 1.0, eval(t, vm, `api.transform.stats.correlation([1, 2, 3], [2, 4, 6])`).ToFloat(), 1e-9)

	_, err := vm.RunString(`api.transform.stats.mean([])`)
	assert.Error(t, err)

	assert.Contains(t, eval(t, vm, `api.transform.mime("<html><body></body></html>").type`).String(), "text/html")
}

func promiseOf(t *testing.T, v goja.Value) *goja.Promise {
	t.Helper()
	p, ok := v.Export().(*goja.Promise)
	require.True(t, ok, "expected a promise")
	return p
}

func TestUI(t *testing.T) {
	n := &fakeNotifier{answer: "typed", confirm: true}
	vm := setup(t, n)

	eval(t, vm, `api.ui.notice("hello"); api.ui.warn("careful")`)
	assert.Equal(t, []string{"info:hello", "warn:careful"}, n.notices)

	p := promiseOf(t, eval(t, vm, `api.ui.confirm("t", "m")`))
	assert.Equal(t, goja.PromiseStateFulfilled, p.State())
	assert.Equal(t, true, p.Result().Export())

	p = promiseOf(t, eval(t, vm, `api.ui.prompt("name?")`))
	assert.Equal(t, "typed", p.Result().String())

	n.err = errors.New("dismissed")
	p = promiseOf(t, eval(t, vm, `api.ui.confirm("t", "m")`))
	assert.Equal(t, goja.PromiseStateRejected, p.State())
}

func TestDiscardNotifierDeclines(t *testing.T) {
	vm := setup(t, nil)

	p := promiseOf(t, eval(t, vm, `api.ui.confirm("t", "m")`))
	assert.Equal(t, false, p.Result().Export())
}
