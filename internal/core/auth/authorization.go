package auth

// =============================================================================
// Template Authorization
// =============================================================================

// CanPublishTemplate checks if the caller may attempt a template publish.
// The caller must hold a build token bound to a pipeline. Whether that
// pipeline owns the template family is decided by the publish resolver.
func CanPublishTemplate(ctx Context) (bool, string) {
	if !ctx.Authenticated {
		return false, "authentication required"
	}
	if !ctx.HasScope(ScopeBuild) {
		return false, "build scope required"
	}
	if ctx.PipelineID <= 0 {
		return false, "token is not bound to a pipeline"
	}
	return true, ""
}
