package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"
)

// run executes the command tree against a fresh root, returning stdout.
func run(t *testing.T, dbPath string, args ...string) (string, error) {
	t.Helper()

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--db", dbPath}, args...))
	err := root.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, dbPath string, args ...string) string {
	t.Helper()
	out, err := run(t, dbPath, args...)
	if err != nil {
		t.Fatalf("%v failed: %v\n%s", args, err, out)
	}
	return out
}

func testDB(t *testing.T) string {
	t.Helper()
	for _, key := range []string{"LOGS_FOLDER", "PATHSPLIT_CATALOG", "PATHSPLIT_PORT", "PATHSPLIT_MIN_SAMPLE", "PATHSPLIT_MIN_CONFIDENCE"} {
		t.Setenv(key, "")
	}
	return filepath.Join(t.TempDir(), "test.db")
}

func TestCreateListResults(t *testing.T) {
	db := testDB(t)

	out := mustRun(t, db, "create", "checkout", "--variants", "Control:a,Free Shipping", "--weights", "3,1", "--description", "orders placed")
	for _, want := range []string{"Created experiment 'checkout' with 2 variants", "free-shipping", "75%", "25%"} {
		if !strings.Contains(out, want) {
			t.Errorf("create output missing %q:\n%s", want, out)
		}
	}

	mustRun(t, db, "record", "checkout", "a", "--converted")
	mustRun(t, db, "record", "checkout", "a")
	out = mustRun(t, db, "record", "checkout", "free-shipping", "--converted")
	if !strings.Contains(out, "Recorded free-shipping: 1 executions, 1 conversions") {
		t.Errorf("unexpected record output:\n%s", out)
	}

	out = mustRun(t, db, "list")
	if !strings.Contains(out, "checkout") || !strings.Contains(out, "RUNNING") {
		t.Errorf("list output missing experiment:\n%s", out)
	}

	out = mustRun(t, db, "results", "checkout")
	for _, want := range []string{"EXPERIMENT: checkout", "GOAL: orders placed", "← LEADING", "Overall: 3 executions, 2 conversions",
		`Leading: "Free Shipping"`, "Statistical confidence: 10% (collect more data)"} {
		if !strings.Contains(out, want) {
			t.Errorf("results output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "leads") {
		t.Errorf("results output claims the confidence is about the leader:\n%s", out)
	}

	out = mustRun(t, db, "results", "checkout", "--markdown")
	if !strings.HasPrefix(out, "# A/B Test Results") || !strings.Contains(out, `"Free Shipping" with 100.00% conversion rate`) {
		t.Errorf("unexpected markdown report:\n%s", out)
	}
}

func TestResults_TruncatesLongLabelsByRune(t *testing.T) {
	db := testDB(t)
	mustRun(t, db, "create", "greeting", "--variants", "日本語のラベルがとても長いです:jp,Short:short")
	mustRun(t, db, "record", "greeting", "jp", "--converted")

	out := mustRun(t, db, "results", "greeting")
	if !utf8.ValidString(out) {
		t.Fatalf("results output is not valid UTF-8:\n%q", out)
	}
	if !strings.Contains(out, "日本語のラベルがとても長い...") || strings.Contains(out, "長いです") {
		t.Errorf("label not cut to 13 runes:\n%s", out)
	}
}

func TestCreate_Errors(t *testing.T) {
	db := testDB(t)

	if _, err := run(t, db, "create", "solo", "--variants", "Only"); err == nil {
		t.Error("expected error for a single variant")
	}
	if _, err := run(t, db, "create", "strict", "--variants", "A,B", "--weights", "60,30", "--strict"); err == nil {
		t.Error("expected error for a strict split that does not sum to 100")
	}
	if _, err := run(t, db, "create", "dupe", "--variants", "A:x,B:x"); err == nil {
		t.Error("expected error for duplicate path ids")
	}

	mustRun(t, db, "create", "strict", "--variants", "A,B", "--weights", "60,40", "--strict")
	if _, err := run(t, db, "create", "strict", "--variants", "A,B"); err == nil {
		t.Error("expected error for duplicate experiment name")
	}
}

func TestVariantEditing(t *testing.T) {
	db := testDB(t)
	mustRun(t, db, "create", "checkout", "--variants", "A:a,B:b")

	out := mustRun(t, db, "add", "checkout", "Gift Wrap")
	if !strings.Contains(out, "gift-wrap") {
		t.Errorf("add output missing new variant:\n%s", out)
	}

	out = mustRun(t, db, "archive", "checkout", "gift-wrap")
	if !strings.Contains(out, "(archived)") {
		t.Errorf("archive output missing archived marker:\n%s", out)
	}

	out = mustRun(t, db, "split", "checkout", "a=3", "b=1")
	if !strings.Contains(out, "75%") || !strings.Contains(out, "25%") {
		t.Errorf("split output not rescaled:\n%s", out)
	}

	out = mustRun(t, db, "unarchive", "checkout", "gift-wrap")
	if strings.Contains(out, "(archived)") {
		t.Errorf("unarchive left the variant archived:\n%s", out)
	}

	if _, err := run(t, db, "record", "checkout", "nope", "--converted"); err == nil || !strings.Contains(err.Error(), "variant 'nope' not found") {
		t.Errorf("got %v, want unknown variant error", err)
	}
	if _, err := run(t, db, "archive", "checkout", "nope"); err == nil {
		t.Error("expected error for unknown path")
	}
	if _, err := run(t, db, "split", "checkout", "a"); err == nil {
		t.Error("expected error for malformed update")
	}
	if _, err := run(t, db, "add", "missing", "X"); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("got %v, want not found", err)
	}
}

func TestLogFolderFromDotEnv(t *testing.T) {
	db := testDB(t)
	dir := t.TempDir()
	logDir := filepath.Join(dir, "logs")
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("LOGS_FOLDER="+logDir+"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)
	os.Unsetenv("LOGS_FOLDER")

	mustRun(t, db, "create", "checkout", "--variants", "A:a,B:b")
	mustRun(t, db, "--verbose", "add", "checkout", "Gift Wrap")

	data, err := os.ReadFile(filepath.Join(logDir, "pathsplit.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"message":"variants updated"`) {
		t.Errorf("got %q, want the variants update in the log file", data)
	}
}

func TestPick_SeedIsReproducible(t *testing.T) {
	db := testDB(t)
	mustRun(t, db, "create", "checkout", "--variants", "A:a,B:b,C:c")

	first := mustRun(t, db, "pick", "checkout", "--seed", "7", "-n", "20")
	second := mustRun(t, db, "pick", "checkout", "--seed", "7", "-n", "20")
	if first != second {
		t.Errorf("seeded picks differ:\n%s\nvs\n%s", first, second)
	}
	if lines := strings.Count(first, "\n"); lines != 20 {
		t.Errorf("got %d picks, want 20", lines)
	}
}

func TestWinner(t *testing.T) {
	db := testDB(t)
	mustRun(t, db, "create", "checkout", "--variants", "A:a,B:b")

	if _, err := run(t, db, "winner", "checkout", "z"); err == nil {
		t.Error("expected error for unknown path")
	}

	out := mustRun(t, db, "winner", "checkout", "b")
	if !strings.Contains(out, `Declared winner for experiment 'checkout': b ("B")`) {
		t.Errorf("unexpected winner output:\n%s", out)
	}

	if _, err := run(t, db, "winner", "checkout", "a"); err == nil {
		t.Error("expected error declaring a winner twice")
	}
}

func TestExport(t *testing.T) {
	db := testDB(t)
	mustRun(t, db, "create", "checkout", "--variants", "A:a,B:b")
	mustRun(t, db, "record", "checkout", "b", "--converted", "--visitor", "v1")

	out := mustRun(t, db, "export", "checkout")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 || lines[0] != "timestamp,path_id,conversion,visitor_id" || !strings.HasSuffix(lines[1], ",b,true,v1") {
		t.Errorf("unexpected csv:\n%s", out)
	}

	out = mustRun(t, db, "export", "checkout", "--format", "json")
	if !strings.Contains(out, `"path_id": "b"`) || !strings.Contains(out, `"experiment": "checkout"`) {
		t.Errorf("unexpected json:\n%s", out)
	}

	if _, err := run(t, db, "export", "checkout", "--format", "xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestCompare(t *testing.T) {
	db := testDB(t)

	out := mustRun(t, db, "compare", "--sample", "--metric", "clickRate")
	if !strings.Contains(out, "Result: inconclusive (93.") {
		t.Errorf("expected inconclusive click rate at 95%%:\n%s", out)
	}

	out = mustRun(t, db, "compare", "--sample", "--metric", "clickRate", "--min-confidence", "90")
	if !strings.Contains(out, "Winner: B") {
		t.Errorf("expected B to win at 90%%:\n%s", out)
	}

	out = mustRun(t, db, "compare", "--sample", "--metric", "revenuePerMessage")
	if !strings.Contains(out, "not enough data for revenuePerMessage") {
		t.Errorf("revenue per message should never be decided:\n%s", out)
	}

	if _, err := run(t, db, "compare", "--sample", "--metric", "openRate"); err == nil {
		t.Error("expected error for unknown metric")
	}
}

func TestCompare_File(t *testing.T) {
	db := testDB(t)
	file := filepath.Join(t.TempDir(), "arms.yaml")
	yaml := "a:\n  sent: 1000\n  delivered: 1000\n  conversions: 100\nb:\n  sent: 1000\n  delivered: 1000\n  conversions: 150\n"
	if err := os.WriteFile(file, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	out := mustRun(t, db, "compare", "--file", file, "--json")
	if !strings.Contains(out, `"winner": "b"`) {
		t.Errorf("expected b to win:\n%s", out)
	}
}

func TestParseArm(t *testing.T) {
	arm, err := parseArm("sent=500, delivered=485,clicks=118,revenue=12.5")
	if err != nil {
		t.Fatalf("parseArm: %v", err)
	}
	if arm.Sent != 500 || arm.Delivered != 485 || arm.Clicks != 118 || arm.Revenue != 12.5 {
		t.Errorf("got %+v", arm)
	}

	for _, bad := range []string{"", "sent", "opens=3", "sent=many"} {
		if _, err := parseArm(bad); err == nil {
			t.Errorf("parseArm(%q): expected error", bad)
		}
	}
}

func TestParseVariants(t *testing.T) {
	vs, err := parseVariants("Control, Free Shipping!:fs , New Copy", "")
	if err != nil {
		t.Fatalf("parseVariants: %v", err)
	}
	want := []string{"control", "fs", "new-copy"}
	for i, v := range vs {
		if v.PathID != want[i] {
			t.Errorf("variant %d: got path %q, want %q", i, v.PathID, want[i])
		}
	}
	if vs[1].Label != "Free Shipping!" {
		t.Errorf("got label %q", vs[1].Label)
	}

	if _, err := parseVariants("A,B", "50"); err == nil {
		t.Error("expected error for weight count mismatch")
	}
	if _, err := parseVariants("A,B", "50,x"); err == nil {
		t.Error("expected error for non-numeric weight")
	}
	if _, err := parseVariants("A,!!!", ""); err == nil {
		t.Error("expected error for label without a usable path id")
	}
}

func TestWizardAnswers(t *testing.T) {
	vs, err := wizardAnswers{Name: "x", Labels: []string{"A", "B", "C"}}.variants()
	if err != nil {
		t.Fatalf("variants: %v", err)
	}
	sum := 0.0
	for _, v := range vs {
		sum += v.Percentage
	}
	if sum < 99.999 || sum > 100.001 {
		t.Errorf("even split sums to %v", sum)
	}

	vs, err = wizardAnswers{Name: "x", Labels: []string{"A", "B"}, Percentages: []float64{1, 3}}.variants()
	if err != nil {
		t.Fatalf("variants: %v", err)
	}
	if vs[0].Percentage != 25 || vs[1].Percentage != 75 {
		t.Errorf("got %+v, want 25/75", vs)
	}
}

func TestRender(t *testing.T) {
	db := testDB(t)
	dataFile := filepath.Join(t.TempDir(), "customer.yaml")
	data := "customer:\n  firstName: Ana\ncart:\n  totalValue: 42\n  products:\n    - name: Boots\n"
	if err := os.WriteFile(dataFile, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	out := mustRun(t, db, "render", "Hi {{firstName}}, {{productName}} costs {{cartTotal}}", "--data", dataFile)
	if strings.TrimSpace(out) != "Hi Ana, Boots costs $42.00" {
		t.Errorf("got %q", out)
	}

	if _, err := run(t, db, "render", "Hi {{shoeSize}}", "--validate"); err == nil || !strings.Contains(err.Error(), "shoeSize") {
		t.Errorf("got %v, want unknown variable error", err)
	}
	if _, err := run(t, db, "render"); err == nil {
		t.Error("expected error without content or template")
	}
}

func TestTemplates(t *testing.T) {
	db := testDB(t)

	out := mustRun(t, db, "template", "save", "--sample", "wishlist")
	if !strings.Contains(out, "Saved template tmpl_") {
		t.Fatalf("unexpected save output:\n%s", out)
	}
	id := strings.Fields(out)[2]

	out = mustRun(t, db, "template", "list")
	if !strings.Contains(out, id) || !strings.Contains(out, "Wishlist Reminder") {
		t.Errorf("list missing template:\n%s", out)
	}

	out = mustRun(t, db, "template", "save", "--id", id, "--content", "Hey {{firstName}}, {{productNames}}", "--inactive")
	if !strings.Contains(out, "firstName, productNames") {
		t.Errorf("update did not derive variables:\n%s", out)
	}

	out = mustRun(t, db, "template", "show", id)
	if !strings.Contains(out, "active: false") || !strings.Contains(out, "segment: wishlist") {
		t.Errorf("unexpected show output:\n%s", out)
	}

	out = mustRun(t, db, "render", "--template", id, "--data", writeJSON(t, `{"cart":{"products":[{"name":"Hat"},{"name":"Scarf"}]}}`))
	if strings.TrimSpace(out) != "Hey there, Hat and Scarf" {
		t.Errorf("got %q", out)
	}

	mustRun(t, db, "template", "delete", id)
	if _, err := run(t, db, "template", "show", id); err == nil {
		t.Error("expected error after delete")
	}
}

func TestSegments(t *testing.T) {
	db := testDB(t)

	out := mustRun(t, db, "segment", "list")
	if !strings.Contains(out, "stock segments") || !strings.Contains(out, "seg_high_value_cart") {
		t.Errorf("expected stock segments before any are stored:\n%s", out)
	}

	def := filepath.Join(t.TempDir(), "vip.yaml")
	yml := "id: seg_vip\nname: VIP\npriority: 20\nrules:\n  - field: customer.tier\n    operator: equals\n    value: vip\n"
	if err := os.WriteFile(def, []byte(yml), 0644); err != nil {
		t.Fatal(err)
	}
	out = mustRun(t, db, "segment", "save", "--file", def)
	if !strings.Contains(out, "Saved segment seg_vip (VIP)") {
		t.Errorf("unexpected save output:\n%s", out)
	}

	out = mustRun(t, db, "segment", "list")
	if strings.Contains(out, "stock segments") || !strings.Contains(out, "seg_vip") || !strings.Contains(out, "true") {
		t.Errorf("list should show only the stored segment:\n%s", out)
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("name: Bad\nrules:\n  - field: x\n    operator: near\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, db, "segment", "save", "--file", bad); err == nil {
		t.Error("expected error for an unknown operator")
	}
	if _, err := run(t, db, "segment", "save"); err == nil {
		t.Error("expected error without --file or --samples")
	}

	mustRun(t, db, "segment", "delete", "seg_vip")
	if _, err := run(t, db, "segment", "delete", "seg_vip"); err == nil || !strings.Contains(err.Error(), "segment 'seg_vip' not found") {
		t.Errorf("got %v, want not found", err)
	}
}

func TestTemplateTests(t *testing.T) {
	db := testDB(t)

	a := strings.Fields(mustRun(t, db, "template", "save", "--name", "A", "--content", "Hi {{firstName}}"))[2]
	b := strings.Fields(mustRun(t, db, "template", "save", "--name", "B", "--content", "Hello {{firstName}}"))[2]

	if _, err := run(t, db, "template", "test", "create", "Copy", a, "tmpl_missing"); err == nil || !strings.Contains(err.Error(), "template 'tmpl_missing' not found") {
		t.Errorf("got %v, want missing template error", err)
	}
	if _, err := run(t, db, "template", "test", "create", "Copy", a, b, "--split", "100"); err == nil {
		t.Error("expected error for a split of 100")
	}

	out := mustRun(t, db, "template", "test", "create", "Copy", a, b, "--split", "70", "--segment", "seg_recent_cart")
	if !strings.Contains(out, "70% "+a) || !strings.Contains(out, "[draft]") {
		t.Fatalf("unexpected create output:\n%s", out)
	}
	id := strings.Fields(out)[2]

	out = mustRun(t, db, "template", "test", "start", id)
	if !strings.Contains(out, "is now active") {
		t.Errorf("unexpected start output:\n%s", out)
	}
	if _, err := run(t, db, "template", "test", "start", id); err == nil {
		t.Error("expected error starting an active test")
	}

	if _, err := run(t, db, "template", "test", "stop", id, "--winner", "tmpl_other"); err == nil {
		t.Error("expected error for a winner outside the test")
	}
	mustRun(t, db, "template", "test", "stop", id, "--winner", b)

	out = mustRun(t, db, "template", "test", "list")
	for _, want := range []string{id, "completed", "70/30", "seg_recent_cart", b} {
		if !strings.Contains(out, want) {
			t.Errorf("list missing %q:\n%s", want, out)
		}
	}

	mustRun(t, db, "template", "test", "delete", id)
	if out := mustRun(t, db, "template", "test", "list"); !strings.Contains(out, "No template tests yet.") {
		t.Errorf("expected empty list:\n%s", out)
	}
}

func TestToken(t *testing.T) {
	db := testDB(t)

	if _, err := run(t, db, "token"); err == nil {
		t.Error("expected error without a token file")
	}

	if err := os.WriteFile(filepath.Join(filepath.Dir(db), ".pathsplit-token"), []byte("abc123"), 0600); err != nil {
		t.Fatal(err)
	}
	out := mustRun(t, db, "token")
	if !strings.Contains(out, "token=abc123") || !strings.Contains(out, "Bearer abc123") {
		t.Errorf("unexpected token output:\n%s", out)
	}
}

func writeJSON(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.json")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}
