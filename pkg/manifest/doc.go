// SPDX-License-Identifier: MPL-2.0

// Package manifest loads the workspace repository manifest (stores/meta.json by
// default): a JSON object whose "repositories" field maps short identities to
// clone locators.
//
//	{
//	  "repositories": {
//	    "demo": {
//	      "link": "git@example.com:org/demo.git",
//	      "httpsLink": "https://example.com/org/demo.git"
//	    }
//	  }
//	}
//
// Loading never fails. Unreadable or invalid files produce an empty manifest
// and a Diagnostic; malformed entries are dropped, counted in Manifest.Skipped
// and reported as diagnostics. Callers decide how to render diagnostics.
package manifest
