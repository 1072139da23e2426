package validator

import "testing"

func TestValidate(t *testing.T) {
	v := New()
	ok := []string{
		"SELECT `t0`.`c0` AS `t0_c0` FROM `t0` WHERE ((`t0`.`c0` > 0) IS NULL)",
		"SELECT COUNT(*) FROM t0 GROUP BY t0.c0 HAVING (COUNT(*) >= 2)",
		"INSERT INTO t0 (id, c0) VALUES (1, NULL), (2, 'a')",
		"CREATE INDEX idx_t0_c0 ON t0 (c0)",
	}
	for _, sql := range ok {
		if err := v.Validate(sql); err != nil {
			t.Fatalf("expected %q to parse: %v", sql, err)
		}
	}
	bad := []string{
		"SELECT * FORM t0",
		"SELECT 1; SELECT 2",
		"",
	}
	for _, sql := range bad {
		if err := v.Validate(sql); err == nil {
			t.Fatalf("expected %q to be rejected", sql)
		}
	}
}
