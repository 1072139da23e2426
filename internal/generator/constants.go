package generator

// Generator tuning constants. Values are percentages or small caps unless
// otherwise noted.

const (
	// DefaultMaxDepth bounds expression trees when options leave it unset.
	DefaultMaxDepth = 3
	// LeafProb is the chance to stop early and emit a leaf.
	LeafProb = 25
	// ColumnLeafProb is the chance a leaf is a column rather than a literal.
	ColumnLeafProb = 70
	// NullLiteralProb is the chance a literal is NULL.
	NullLiteralProb = 10
	// EdgeLiteralProb is the chance an integer literal is a type boundary.
	EdgeLiteralProb = 5
	// InListMax caps IN list length.
	InListMax = 4
	// NonBooleanRootProb is the chance PQS asks for a non-boolean root.
	NonBooleanRootProb = 20
)

const (
	// ColumnNullableProb is the chance to mark a column nullable.
	ColumnNullableProb = 70
	// ColumnIndexProb is the chance to add an index on a column.
	ColumnIndexProb = 30
	// InsertRowCountMax is the maximum number of rows in a single INSERT.
	InsertRowCountMax = 3
	// InsertNullProb is the chance a nullable column gets NULL on insert.
	InsertNullProb = 20
)

const (
	// SmallIntLiteralMax bounds ordinary SMALLINT literals.
	SmallIntLiteralMax = 100
	// IntLiteralMax bounds ordinary INT literals.
	IntLiteralMax = 1000
	// BigIntLiteralMax bounds ordinary BIGINT literals.
	BigIntLiteralMax = 100000
	// DecimalLiteralMax bounds the integral part of DECIMAL(12,2) literals.
	DecimalLiteralMax = 1000
	// StringLiteralLenMax caps generated string length.
	StringLiteralLenMax = 5
	// DateYearMin and DateYearMax bound generated dates.
	DateYearMin = 1990
	DateYearMax = 2030
)

// stringAlphabet avoids backslashes and quotes so literals render the same
// in every dialect.
const stringAlphabet = "abcxyzABCXYZ019 _-%"
