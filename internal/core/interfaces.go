package core

// ConnectorRepository defines storage operations for connection descriptors.
type ConnectorRepository interface {
	Create(c *Connector) error
	GetAll() ([]Connector, error)
	GetByID(id string) (*Connector, error)
	GetByName(name string) (*Connector, error)
	Update(c *Connector) error
	Delete(id string) error
}

// QueryRepository defines storage operations for saved queries.
type QueryRepository interface {
	Create(q *Query) error
	GetAll() ([]Query, error)
	GetByID(id string) (*Query, error)
	Update(q *Query) error
	Delete(id string) error
}

// MappingRepository defines storage operations for route mappings.
type MappingRepository interface {
	Create(m *Mapping) error
	GetAll() ([]Mapping, error)
	GetByID(id string) (*Mapping, error)
	GetDeployed() ([]Mapping, error)
	SetDeployed(id string, deployed bool) error
	Delete(id string) error
}

// LogRepository is the append-only request audit trail. No update or delete
// operation exists.
type LogRepository interface {
	Append(e *LogEntry) error
	Get(requestID string) (*LogEntry, error)
	Recent(limit int) ([]LogEntry, error)
}

// ApiKeyRepository defines storage operations for hashed API keys.
type ApiKeyRepository interface {
	Create(k *ApiKey) error
	GetByPrefix(prefix string) ([]ApiKey, error)
	GetAll() ([]ApiKey, error)
}
