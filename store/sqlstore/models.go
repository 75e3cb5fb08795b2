package sqlstore

// documentRow is one stored document.
type documentRow struct {
	Collection string `gorm:"primaryKey;size:255"`
	Seq        int64  `gorm:"primaryKey;autoIncrement:false"`
	Body       []byte `gorm:"not null"`
}

func (documentRow) TableName() string { return "viewkit_documents" }

// indexRow declares an index on a collection field.
type indexRow struct {
	Collection string `gorm:"primaryKey;size:255"`
	Field      string `gorm:"primaryKey;size:255"`
}

func (indexRow) TableName() string { return "viewkit_indexes" }

// entryRow maps one equality key hash of an indexed field to a document.
type entryRow struct {
	Collection string `gorm:"primaryKey;size:255"`
	Field      string `gorm:"primaryKey;size:255"`
	KeyHash    int64  `gorm:"primaryKey;autoIncrement:false"`
	Seq        int64  `gorm:"primaryKey;autoIncrement:false"`
}

func (entryRow) TableName() string { return "viewkit_index_entries" }
