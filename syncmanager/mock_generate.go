package syncmanager

//go:generate -command mockgen mockgen -package=syncmanager -self_package=github.com/codeindex/codeindex/syncmanager
//go:generate mockgen -destination=./artifactstore_mock.go github.com/codeindex/codeindex/syncmanager ArtifactStore
