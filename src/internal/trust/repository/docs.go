// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package repository retrieves root, intermediate and untrusted certificates
// from a remote XML feed and keeps the trust store's repository lists in sync
// with the feed index.
//
// The feed lives under a base URL:
//
//	<base>/index.xml                 repository index
//	<base>/<kind>/<ID>.xml           certificates for one repository id
//
// where kind is root, intermediate or untrusted and ID is the upper case hex
// repository id. The index looks like:
//
//	<repository>
//	  <repository-list><item>ID</item>...</repository-list>
//	  <intermediate-list><item>ID</item>...</intermediate-list>
//	  <untrusted-list><item>ID</item>...</untrusted-list>
//	  <delete-list><item>ID</item>...</delete-list>
//	  <crl-location><item id="ID"><url>...</url>...</item></crl-location>
//	  <ocsp-override><item id="ID" url="..."/></ocsp-override>
//	</repository>
//
// and a certificate feed like:
//
//	<certificates>
//	  <certificate before="2.0.0" after="1.0.0">
//	    <shortname>Example Root</shortname>
//	    <certificate-data>base64 DER</certificate-data>
//	    <warn/>
//	    <deny/>
//	  </certificate>
//	</certificates>
//
// An entry with before="V" is only active in versions older than V, and one
// with after="V" only in V and newer.
//
// Every fetch attempt is recorded in a [RetrievalCache]; an id attempted in
// the last retry window (24h by default) is not fetched again. Concurrent
// requests for the same id or for the index share one fetch.
package repository
