// Package component resolves the component references of a route manifest
// and the client modules those components point at.
//
// A route entry names its component by reference ("posts/show"). The server
// turns references into render.Component values through a Loader:
//
//	reg := component.NewRegistry()
//	reg.Register("posts/show", render.ComponentFunc(showPost))
//	loader := component.NewCachingLoader(reg)
//
// Client modules are resolved through a ModuleMap. In development every
// module id maps to a single chunk served by the dev server; a production
// build reads the bundler's client manifest:
//
//	modules, err := component.LoadBuildModuleMap("dist/client-manifest.json", "/assets/")
package component
