// Copyright 2023 uhppoted@twyst.co.za. All rights reserved.
// Use of this source code is governed by an MIT-style license
// that can be found in the LICENSE file.

/*
Package uhppoted-app-report emails a daily snapshot of a monthly report workbook stored in a Google shared drive.

uhppoted-app-report can be used from the command line but is really intended to be run from a cron job. Each run
locates the workbook in the shared drive, renders the block of cells for the current date to a PNG image and emails
the image to a list of recipients, retrying the whole sequence on failure.

uhppoted-app-report supports the following commands:

  - run, to render and email today's report (the default)
  - authorise, to authorise application access to Google Drive and Gmail
  - locate, to resolve the workbook path in the shared drive
  - render, to render the report block for a date to a PNG file
  - extract, to extract the report block for a date as a TSV file
  - send, to email a previously rendered report image
  - history, to list the most recent report attempts
  - version, to display the current version
*/
package report
