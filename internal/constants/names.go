package constants

// Well-known container, binary and port facts about the workload.
const (
	ContainerNameHydra = "hydra"
	BinaryNameHydra    = "hydra"

	PublicPort = 4444
	AdminPort  = 4445

	// ConfigFilePath is where the rendered configuration lives inside the
	// workload container.
	ConfigFilePath = "/etc/config/hydra.yaml"
)

// Resource name suffixes used by the operator when creating per-service resources.
const (
	SuffixPeerData     = "-peer-data"
	SuffixConfig       = "-config"
	SuffixSystemSecret = "-systemsecret"
	SuffixCookieSecret = "-cookiesecret"
	SuffixCredentials  = "-oauth-credentials"
)

// Integration names surfaced in status messages. They match the relation
// names consuming applications know this service by.
const (
	DatabaseIntegrationName      = "pg-database"
	PublicIngressIntegrationName = "public-ingress"
	LoginUIIntegrationName       = "ui-endpoint-info"
	PeerIntegrationName          = "hydra"
)

// Keys used in the peer data store.
const (
	// MigrationVersionKeyPrefix prefixes the per-database-integration key that
	// records the last migrated workload version.
	MigrationVersionKeyPrefix = "migration_version_"
	// OAuthRegistryKeyPrefix prefixes the per-relation client registry entries.
	OAuthRegistryKeyPrefix = "oauth_"
	// RelationSequenceKey holds the last allocated relation identifier.
	RelationSequenceKey = "relation_id_sequence"
	// ConfigChecksumKey records the hash of the config the workload last
	// restarted with.
	ConfigChecksumKey = "config_checksum"
)

// Default database names and URLs used when an integration is absent.
const (
	DefaultBaseURL  = "http://127.0.0.1:4444/"
	DefaultAdminURL = "http://127.0.0.1:4445/"
)
