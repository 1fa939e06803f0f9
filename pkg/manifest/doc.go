// Package manifest loads route manifests and turns them into route trees.
//
// A manifest is a flat list of route entries that reference their parent by
// id, in JSON or YAML:
//
//	routes:
//	  - id: root
//	    path: /
//	    component: layouts/root
//	  - id: posts
//	    parentId: root
//	    path: posts
//	  - id: post
//	    parentId: posts
//	    path: ":id"
//	    component: posts/show
//
// A bare top-level list is accepted too. Manifests come from local files
// (FileSource), from S3 (S3Source), or from a Watcher that reloads a local
// file whenever it changes.
package manifest
